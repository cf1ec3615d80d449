package wire

import "errors"

// Wire package errors.
var (
	// ErrPayloadTooLarge is returned when a payload exceeds the 16-bit
	// length field of the frame header.
	ErrPayloadTooLarge = errors.New("wire: payload exceeds 65535 bytes")

	// ErrUnknownFrameType is returned by Frame.Validate and Encode
	// for types > 2.
	ErrUnknownFrameType = errors.New("wire: unknown frame type")

	// ErrWriteFailed is returned when a frame could not be written in full.
	ErrWriteFailed = errors.New("wire: short write")
)
