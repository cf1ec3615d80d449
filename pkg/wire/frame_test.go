package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundtrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{
			name:  "Empty identity frame",
			frame: Frame{Type: TypeIdentity},
		},
		{
			name:  "IV frame",
			frame: Frame{Type: TypeIV, Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		},
		{
			name:  "Data frame",
			frame: Frame{Type: TypeData, Payload: bytes.Repeat([]byte{0xAB}, 48)},
		},
		{
			name:  "Payload longer than 255",
			frame: Frame{Type: TypeData, Payload: bytes.Repeat([]byte{0x20}, 300)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.frame.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			if len(data) != HeaderSize+len(tt.frame.Payload) {
				t.Errorf("encoded length = %d, want %d", len(data), HeaderSize+len(tt.frame.Payload))
			}
			if data[2] != 0 {
				t.Errorf("reserved byte = %d, want 0", data[2])
			}

			d := NewDecoder()
			d.Feed(data)
			got := d.Next()
			if got == nil {
				t.Fatal("Next returned nil for a complete frame")
			}
			if got.Type != tt.frame.Type {
				t.Errorf("type = %v, want %v", got.Type, tt.frame.Type)
			}
			if !bytes.Equal(got.Payload, tt.frame.Payload) {
				t.Errorf("payload mismatch: got %x, want %x", got.Payload, tt.frame.Payload)
			}
			if d.Next() != nil {
				t.Error("decoder returned a second frame from single input")
			}
		})
	}
}

func TestFrameHeaderEncoding(t *testing.T) {
	// Length is big-endian: hi*256 + lo.
	f := Frame{Type: TypeData, Payload: make([]byte, 0x1234)}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if data[0] != 0x12 || data[1] != 0x34 {
		t.Errorf("length bytes = %02x %02x, want 12 34", data[0], data[1])
	}
	if data[3] != 2 {
		t.Errorf("type byte = %d, want 2", data[3])
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	f := Frame{Type: TypeData, Payload: make([]byte, MaxPayloadSize+1)}
	if _, err := f.Encode(); err != ErrPayloadTooLarge {
		t.Errorf("Encode error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestEncodeUnknownFrameType(t *testing.T) {
	f := Frame{Type: 3}
	if _, err := f.Encode(); err != ErrUnknownFrameType {
		t.Errorf("Encode error = %v, want ErrUnknownFrameType", err)
	}

	var buf bytes.Buffer
	if err := NewStreamWriter(&buf).WriteFrame(3, nil); err != ErrUnknownFrameType {
		t.Errorf("WriteFrame error = %v, want ErrUnknownFrameType", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for a rejected frame", buf.Len())
	}
}

func TestDecoderSplitAcrossReads(t *testing.T) {
	f := Frame{Type: TypeData, Payload: bytes.Repeat([]byte{0x42}, 32)}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Feed byte by byte; no frame until the last byte arrives.
	d := NewDecoder()
	for i := 0; i < len(data)-1; i++ {
		d.Feed(data[i : i+1])
		if got := d.Next(); got != nil {
			t.Fatalf("Next returned a frame after %d of %d bytes", i+1, len(data))
		}
	}
	d.Feed(data[len(data)-1:])
	got := d.Next()
	if got == nil {
		t.Fatal("Next returned nil after the full frame arrived")
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Error("reassembled payload mismatch")
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered = %d after draining, want 0", d.Buffered())
	}
}

func TestDecoderMultipleFramesInOneRead(t *testing.T) {
	frames := []Frame{
		{Type: TypeIdentity, Payload: []byte(`{"type":"ident"}`)},
		{Type: TypeIV, Payload: []byte{8, 7, 6, 5, 4, 3, 2, 1}},
		{Type: TypeData, Payload: bytes.Repeat([]byte{0x11}, 16)},
	}

	var stream []byte
	for i := range frames {
		data, err := frames[i].Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		stream = append(stream, data...)
	}

	d := NewDecoder()
	d.Feed(stream)

	for i := range frames {
		got := d.Next()
		if got == nil {
			t.Fatalf("frame %d: Next returned nil", i)
		}
		if got.Type != frames[i].Type {
			t.Errorf("frame %d: type = %v, want %v", i, got.Type, frames[i].Type)
		}
		if !bytes.Equal(got.Payload, frames[i].Payload) {
			t.Errorf("frame %d: payload mismatch", i)
		}
	}
	if d.Next() != nil {
		t.Error("decoder returned an extra frame")
	}
}

func TestFrameValidate(t *testing.T) {
	for ft := FrameType(0); ft <= 2; ft++ {
		if err := (&Frame{Type: ft}).Validate(); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", ft, err)
		}
	}
	if err := (&Frame{Type: 3}).Validate(); err != ErrUnknownFrameType {
		t.Errorf("Validate(3) = %v, want ErrUnknownFrameType", err)
	}
}

func TestStreamWriter(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf)

	if err := sw.WriteFrame(TypeIV, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	d := NewDecoder()
	d.Feed(buf.Bytes())
	got := d.Next()
	if got == nil || got.Type != TypeIV || len(got.Payload) != 8 {
		t.Fatalf("unexpected decoded frame: %+v", got)
	}
}
