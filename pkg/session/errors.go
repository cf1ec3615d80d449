package session

import "errors"

// Session package errors.
var (
	// ErrInvalidKeySize is returned when the shared key is not 16 bytes.
	ErrInvalidKeySize = errors.New("session: invalid key size, must be 16 bytes")

	// ErrInvalidIVSize is returned when an initial vector is not 8 bytes.
	ErrInvalidIVSize = errors.New("session: invalid IV size, must be 8 bytes")

	// ErrCiphertextSize is returned when ciphertext is empty or not a
	// multiple of the AES block size.
	ErrCiphertextSize = errors.New("session: ciphertext not a multiple of block size")

	// ErrNotUTF8 is returned when decrypted plaintext is not valid UTF-8.
	ErrNotUTF8 = errors.New("session: plaintext is not valid UTF-8")
)
