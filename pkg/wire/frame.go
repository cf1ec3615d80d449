package wire

import "io"

// Frame sizes.
const (
	// HeaderSize is the fixed frame header size:
	// length high byte, length low byte, reserved (0), frame type.
	HeaderSize = 4

	// MaxPayloadSize is the largest payload the 16-bit length field
	// can describe.
	MaxPayloadSize = 0xFFFF
)

// Frame is a single unit of the QCX local protocol: a 4-byte header
// followed by the payload. The payload of a TypeData frame is AES-CBC
// ciphertext; Identity and IV frames are cleartext.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// Validate rejects frame types the protocol does not define.
func (f *Frame) Validate() error {
	if !f.Type.IsValid() {
		return ErrUnknownFrameType
	}
	return nil
}

// Encode returns the wire representation of the frame.
func (f *Frame) Encode() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(f.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = byte(len(f.Payload) >> 8)
	buf[1] = byte(len(f.Payload))
	buf[2] = 0 // reserved
	buf[3] = byte(f.Type)
	copy(buf[HeaderSize:], f.Payload)

	return buf, nil
}

// StreamWriter emits frames to an underlying stream.
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter creates a writer that frames payloads onto w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WriteFrame encodes and writes a single frame.
func (sw *StreamWriter) WriteFrame(t FrameType, payload []byte) error {
	data, err := (&Frame{Type: t, Payload: payload}).Encode()
	if err != nil {
		return err
	}

	n, err := sw.w.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return ErrWriteFailed
	}
	return nil
}
