package controller

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/klyqa-lan/pkg/device"
	"github.com/backkem/klyqa-lan/pkg/keystore"
	"github.com/backkem/klyqa-lan/pkg/message"
	"github.com/backkem/klyqa-lan/pkg/session"
	"github.com/backkem/klyqa-lan/pkg/wire"
)

// readBufferSize is the connection read chunk size. Frames larger than
// this are reassembled by the stream decoder.
const readBufferSize = 4096

// handler serves one accepted device connection: handshake, command
// write, answer read. It owns the device use-lock for the life of the
// connection and releases it on every exit path.
type handler struct {
	id       string
	conn     net.Conn
	registry *device.Registry
	keys     *keystore.Store
	queue    *message.Queue
	log      logging.LeveledLogger

	readTimeout time.Duration
	lockTimeout time.Duration

	// onClose is called exactly once after the socket is closed, used
	// by the dispatcher to release the remote IP.
	onClose func()

	w     *wire.StreamWriter
	state connState

	key     []byte
	localIV []byte
	sess    *session.Session

	dev      *device.Device
	inFlight *message.Message
	answered bool
}

// run drives the connection to a terminal code and cleans up.
func (h *handler) run(ctx context.Context) TerminalCode {
	code := h.serve(ctx)
	h.cleanup(code)
	return code
}

func (h *handler) serve(ctx context.Context) TerminalCode {
	h.w = wire.NewStreamWriter(h.conn)
	dec := wire.NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			if h.inFlight != nil && !h.answered {
				return CodeSent
			}
			if errors.Is(err, context.Canceled) {
				return CodeNoError
			}
			return CodeTCPError
		}

		h.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		n, err := h.conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if h.inFlight != nil && !h.answered {
				return CodeSent
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return CodeTCPError
			}
			return CodeSocketError
		}

		dec.Feed(buf[:n])
		for f := dec.Next(); f != nil; f = dec.Next() {
			if code, done := h.handleFrame(ctx, f); done {
				return code
			}
		}
	}
}

func (h *handler) handleFrame(ctx context.Context, f *wire.Frame) (TerminalCode, bool) {
	switch {
	case h.state == stateWaitIV && f.Type == wire.TypeIdentity:
		return h.handleIdentity(ctx, f.Payload)
	case h.state == stateWaitIV && f.Type == wire.TypeIV:
		return h.handleRemoteIV(ctx, f.Payload)
	case h.state == stateConnected && f.Type == wire.TypeData:
		return h.handleAnswer(f.Payload), true
	default:
		if h.log != nil {
			h.log.Warnf("conn %s: frame type %d in state %s", h.id, f.Type, h.state)
		}
		return CodeUnknownError, true
	}
}

// handleIdentity resolves the device, takes its use-lock and answers
// with the local initial vector. A device with no queued work is told
// nothing and the connection closes cleanly.
func (h *handler) handleIdentity(ctx context.Context, payload []byte) (TerminalCode, bool) {
	ident, err := device.ParseIdentity(payload)
	if err != nil {
		return CodeNoUnitID, true
	}

	dev, created, err := h.registry.GetOrCreate(ident)
	if err != nil {
		return CodeNoUnitID, true
	}
	h.dev = dev
	dev.SetLastAddr(h.conn.RemoteAddr())
	if created && h.log != nil {
		h.log.Infof("conn %s: new device %s (%s)", h.id, dev.UnitID(), dev.ProductID())
	}

	if err := dev.Lock().TryLock(ctx, h.id, h.lockTimeout); err != nil {
		if errors.Is(err, device.ErrLockTimeout) {
			return CodeDeviceLockTimeout, true
		}
		return CodeUnknownError, true
	}
	dev.SetSessionID(h.id)

	if h.queue.NextFor(dev.UnitID()) == nil {
		return CodeNoMessageToSend, true
	}

	h.key, err = h.keys.KeyFor(dev.UnitID())
	if err != nil {
		return CodeMissingAESKey, true
	}

	h.localIV, err = session.NewIV()
	if err != nil {
		return CodeUnknownError, true
	}
	if err := h.w.WriteFrame(wire.TypeIV, h.localIV); err != nil {
		return CodeSocketError, true
	}
	return CodeNoError, false
}

// handleRemoteIV completes the handshake and writes the pending
// commands.
func (h *handler) handleRemoteIV(ctx context.Context, payload []byte) (TerminalCode, bool) {
	if h.key == nil {
		return CodeMissingAESKey, true
	}
	if len(payload) != session.IVSize {
		return CodeResponseError, true
	}

	sess, err := session.New(h.key, h.localIV, payload)
	if err != nil {
		return CodeUnknownError, true
	}
	h.sess = sess
	h.state = stateConnected

	return h.sendPending(ctx)
}

// sendPending selects the message this connection should serve and
// writes its commands. Messages whose value checks fail are dropped
// with their callback fired; the next queued message is tried.
func (h *handler) sendPending(ctx context.Context) (TerminalCode, bool) {
	unitID := h.dev.UnitID()

	for {
		msg := h.queue.NextFor(unitID)
		if msg == nil {
			return CodeNoMessageToSend, true
		}
		msg.MarkDelivered(unitID)

		if err := checkCommands(msg, h.dev); err != nil {
			if h.log != nil {
				h.log.Warnf("conn %s: message %d dropped: %v", h.id, msg.Number(), err)
			}
			h.queue.Remove(msg)
			msg.SetErr(err)
			msg.FireCallback()
			continue
		}

		cmds := msg.Commands()
		for i, cmd := range cmds {
			js, err := cmd.JSON()
			if err != nil {
				h.queue.Remove(msg)
				msg.SetErr(err)
				msg.FireCallback()
				return CodeUnknownError, true
			}

			ct, err := h.sess.Encrypt([]byte(js))
			if err != nil {
				return CodeUnknownError, true
			}
			if err := h.w.WriteFrame(wire.TypeData, ct); err != nil {
				h.inFlight = msg
				return CodeSocketError, true
			}
			msg.MarkSent(js)
			h.inFlight = msg

			// A transition command declares a pause; the next command
			// waits it out so the device can finish the transition.
			if pause := cmd.PauseAfter(); pause > 0 && i < len(cmds)-1 {
				timer := time.NewTimer(pause)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return CodeSent, true
				}
			}
		}
		return CodeNoError, false
	}
}

// handleAnswer decrypts a type-2 frame, merges the device status and
// completes the in-flight message.
func (h *handler) handleAnswer(payload []byte) TerminalCode {
	plain, err := h.sess.Decrypt(payload)
	if err != nil {
		return CodeResponseError
	}

	if err := h.dev.UpdateStatus(plain); err != nil && h.log != nil {
		h.log.Debugf("conn %s: status not merged: %v", h.id, err)
	}

	msg := h.inFlight
	if msg == nil {
		return CodeResponseError
	}
	if !msg.IsBroadcast() {
		h.queue.Remove(msg)
	}
	h.answered = true
	if err := msg.SetAnswer(plain); err != nil {
		return CodeResponseError
	}
	return CodeAnswered
}

// cleanup runs on every exit path: close the socket, release the
// use-lock iff this connection owns it, free the remote address slot,
// and fail the in-flight message so callers never hang.
func (h *handler) cleanup(code TerminalCode) {
	h.conn.Close()

	if h.dev != nil {
		if h.dev.SessionID() == h.id {
			h.dev.SetSessionID("")
		}
		h.dev.Lock().Unlock(h.id)
	}

	if h.onClose != nil {
		h.onClose()
	}

	// A broadcast stays queued for its other recipients; the sweeper
	// expires it.
	if m := h.inFlight; m != nil && !h.answered && !m.IsBroadcast() {
		h.queue.Remove(m)
		m.FireCallback()
	}

	if h.log == nil {
		return
	}
	switch code {
	case CodeNoError, CodeNoMessageToSend:
		h.log.Debugf("conn %s: %s", h.id, code)
	case CodeAnswered, CodeSent:
		h.log.Infof("conn %s: %s", h.id, code)
	case CodeNoUnitID, CodeDeviceLockTimeout:
		h.log.Warnf("conn %s: %s", h.id, code)
	default:
		h.log.Errorf("conn %s: %s", h.id, code)
	}
}

// checkCommands validates every command against the device config. The
// first failed check of an unforced command aborts the message.
func checkCommands(msg *message.Message, dev *device.Device) error {
	for _, cmd := range msg.Commands() {
		if err := cmd.Check(dev); err != nil && !cmd.Forced() {
			return err
		}
	}
	return nil
}
