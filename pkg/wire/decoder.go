package wire

// Decoder reassembles frames from a byte stream. TCP gives no message
// boundaries: a single read may carry half a frame or several frames,
// so the decoder retains unconsumed bytes between calls.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw bytes received from the stream.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next returns the next complete frame, or nil if more bytes are
// needed. Call repeatedly until it returns nil: one read may have
// delivered multiple frames and they must be handled in order.
func (d *Decoder) Next() *Frame {
	if len(d.buf) < HeaderSize {
		return nil
	}

	length := int(d.buf[0])<<8 | int(d.buf[1])
	if len(d.buf) < HeaderSize+length {
		return nil
	}

	f := &Frame{
		Type:    FrameType(d.buf[3]),
		Payload: make([]byte, length),
	}
	copy(f.Payload, d.buf[HeaderSize:HeaderSize+length])

	d.buf = d.buf[HeaderSize+length:]
	if len(d.buf) == 0 {
		d.buf = nil
	}

	return f
}

// Buffered returns the number of retained, not yet consumed bytes.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
