// Package message holds the queued unit of work of the controller: an
// ordered list of commands for one device (or all of them), with a TTL
// and an at-most-once completion callback.
package message

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/backkem/klyqa-lan/pkg/command"
)

// BroadcastTarget is the reserved queue key addressing every device.
// Broadcast messages track a per-recipient delivered set so each unit
// receives them at most once.
const BroadcastTarget = "all"

// counter numbers messages monotonically across the process.
var counter atomic.Uint64

// Callback is invoked exactly once when the message reaches a terminal
// condition: answered, TTL-expired, or failed. On expiry and failure
// the message carries no answer.
type Callback func(*Message)

// Message is a queued unit of work targeting one unit id or the
// broadcast sentinel.
type Message struct {
	number   uint64
	target   string
	commands []command.Command
	ttl      time.Duration
	started  time.Time

	cb     Callback
	cbOnce sync.Once

	mu         sync.Mutex
	state      State
	sent       []string // serialized commands written to the wire
	answer     []byte
	answerJSON map[string]interface{}
	answeredAt time.Time
	err        error
	delivered  map[string]bool // broadcast recipients served so far
}

// New creates a message. The commands list must be non-empty; ttl
// bounds how long the message may sit unanswered. cb may be nil.
func New(target string, commands []command.Command, ttl time.Duration, cb Callback) (*Message, error) {
	if len(commands) == 0 {
		return nil, ErrNoCommands
	}

	m := &Message{
		number:   counter.Add(1),
		target:   target,
		commands: commands,
		ttl:      ttl,
		started:  time.Now(),
		cb:       cb,
	}
	if target == BroadcastTarget {
		m.delivered = make(map[string]bool)
	}
	return m, nil
}

// Number returns the process-wide message number.
func (m *Message) Number() uint64 { return m.number }

// Target returns the unit-id slug, or BroadcastTarget.
func (m *Message) Target() string { return m.target }

// Commands returns the ordered command list.
func (m *Message) Commands() []command.Command { return m.commands }

// Started returns the creation timestamp.
func (m *Message) Started() time.Time { return m.started }

// TTL returns the time-to-live.
func (m *Message) TTL() time.Duration { return m.ttl }

// IsBroadcast reports whether the message targets every device.
func (m *Message) IsBroadcast() bool { return m.target == BroadcastTarget }

// State returns the current state.
func (m *Message) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Expired reports whether the TTL has passed at the given time.
func (m *Message) Expired(now time.Time) bool {
	return m.ttl > 0 && now.Sub(m.started) > m.ttl
}

// CheckTTL returns true while the message is still alive. Once the
// deadline has passed it fires the callback (empty answer) and returns
// false; the caller removes the message from its queue.
func (m *Message) CheckTTL(now time.Time) bool {
	if !m.Expired(now) {
		return true
	}
	m.FireCallback()
	return false
}

// MarkSent records a serialized command hitting the wire and advances
// the state to SENT.
func (m *Message) MarkSent(serialized string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, serialized)
	if m.state == StateUnsent {
		m.state = StateSent
	}
}

// Sent returns the serialized commands written so far.
func (m *Message) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// SetAnswer stores the device's answer, advances the state to ANSWERED
// and fires the callback. The raw payload is kept even when JSON
// decoding fails, in which case ErrAnswerNotJSON is returned and the
// parsed form stays nil.
func (m *Message) SetAnswer(raw []byte) error {
	m.mu.Lock()
	m.answer = make([]byte, len(raw))
	copy(m.answer, raw)
	m.answeredAt = time.Now()

	var parsed map[string]interface{}
	err := json.Unmarshal(raw, &parsed)
	if err == nil {
		m.answerJSON = parsed
	} else {
		err = ErrAnswerNotJSON
	}
	m.state = StateAnswered
	m.mu.Unlock()

	m.FireCallback()
	return err
}

// Answer returns the raw answer payload, nil while unanswered.
func (m *Message) Answer() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answer
}

// AnswerJSON returns the parsed answer object, nil while unanswered.
func (m *Message) AnswerJSON() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answerJSON
}

// AnsweredAt returns when the answer arrived.
func (m *Message) AnsweredAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answeredAt
}

// SetErr records a terminal error, e.g. a missing AES key.
func (m *Message) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Err returns the terminal error, if any.
func (m *Message) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// FireCallback invokes the callback at most once. Safe to call from
// every terminal path; later calls are no-ops.
func (m *Message) FireCallback() {
	m.cbOnce.Do(func() {
		if m.cb != nil {
			m.cb(m)
		}
	})
}

// MarkDelivered records broadcast delivery intent for a unit id. It
// returns false when the unit was already served, enforcing
// at-most-once delivery per recipient. Non-broadcast messages always
// return true.
func (m *Message) MarkDelivered(unitID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.delivered == nil {
		return true
	}
	if m.delivered[unitID] {
		return false
	}
	m.delivered[unitID] = true
	return true
}

// DeliveredTo reports whether the broadcast was already delivered to a
// unit id.
func (m *Message) DeliveredTo(unitID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delivered != nil && m.delivered[unitID]
}

// DeliveredCount returns how many units the broadcast has served.
func (m *Message) DeliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}
