package message

import (
	"sync"
	"time"
)

// Queue maps unit-id slugs to their pending messages. The reserved
// BroadcastTarget key holds messages addressed to every device. Keys
// are plain strings, never device objects.
type Queue struct {
	mu   sync.Mutex
	msgs map[string][]*Message

	// wake is signalled on enqueue so the dispatcher's idle wait can
	// be cut short when new work arrives.
	wake chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		msgs: make(map[string][]*Message),
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends a message to its target's slot and signals the wake
// channel.
func (q *Queue) Enqueue(m *Message) {
	q.mu.Lock()
	q.msgs[m.Target()] = append(q.msgs[m.Target()], m)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default: // a wakeup is already pending
	}
}

// Wake returns the channel signalled on enqueue.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// NextFor selects the message a connection to the given unit should
// serve: an undelivered broadcast wins over the head of the per-unit
// slot. The message stays queued; it leaves via Remove on answer,
// failed check, error or expiry.
func (q *Queue) NextFor(unitID string) *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, b := range q.msgs[BroadcastTarget] {
		if !b.DeliveredTo(unitID) {
			return b
		}
	}
	if slot := q.msgs[unitID]; len(slot) > 0 {
		return slot[0]
	}
	return nil
}

// Remove takes a message out of its slot. Returns false when the
// message was no longer queued, which tells racing removers (answer
// path vs TTL sweep) who owns the cleanup.
func (q *Queue) Remove(m *Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	slot := q.msgs[m.Target()]
	for i, qm := range slot {
		if qm == m {
			q.msgs[m.Target()] = append(slot[:i:i], slot[i+1:]...)
			if len(q.msgs[m.Target()]) == 0 {
				delete(q.msgs, m.Target())
			}
			return true
		}
	}
	return false
}

// Expire removes and returns every message whose TTL passed. Empty
// slots are deleted. Callbacks are the caller's business so they run
// outside the queue lock.
func (q *Queue) Expire(now time.Time) []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []*Message
	for key, slot := range q.msgs {
		kept := slot[:0]
		for _, m := range slot {
			if m.Expired(now) {
				expired = append(expired, m)
			} else {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(q.msgs, key)
		} else {
			q.msgs[key] = kept
		}
	}
	return expired
}

// Clear empties the queue and returns the removed messages, used on
// shutdown to fail pending work.
func (q *Queue) Clear() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*Message
	for _, slot := range q.msgs {
		out = append(out, slot...)
	}
	q.msgs = make(map[string][]*Message)
	return out
}

// Len returns the number of queued messages across all slots.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, slot := range q.msgs {
		n += len(slot)
	}
	return n
}

// HasWork reports whether any message is queued.
func (q *Queue) HasWork() bool {
	return q.Len() > 0
}
