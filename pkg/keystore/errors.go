package keystore

import "errors"

// Keystore package errors.
var (
	// ErrKeySize is returned for keys that are not 16 bytes.
	ErrKeySize = errors.New("keystore: key must be 16 bytes")

	// ErrKeyEncoding is returned when a hex key fails to decode.
	ErrKeyEncoding = errors.New("keystore: invalid hex key")

	// ErrEmptyUnitID is returned when a unit id slugifies to nothing.
	ErrEmptyUnitID = errors.New("keystore: empty unit id")

	// ErrMissingKey is returned when no key is available for a unit id.
	// Fatal to the connection; the caller surfaces it via the message
	// callback.
	ErrMissingKey = errors.New("keystore: no AES key for unit id")
)
