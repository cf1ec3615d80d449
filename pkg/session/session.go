// AES-128-CBC session for the QCX local protocol.
//
// During the handshake each side contributes an 8-byte random initial
// vector. The two vectors are concatenated to seed two independent CBC
// contexts over the same pre-shared 16-byte key:
//
//	sending   IV = local  || remote
//	receiving IV = remote || local
//
// Plaintext is UTF-8 JSON right-padded with ASCII spaces (0x20) to a
// multiple of the AES block size. The wire deliberately does not use
// PKCS#7; receivers trim trailing whitespace before JSON decoding.
package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"sync"
	"unicode/utf8"
)

// Sizes used by the handshake.
const (
	// KeySize is the AES-128 key size in bytes.
	KeySize = 16

	// IVSize is the size of one side's initial vector. Two of them
	// concatenated form a full AES block.
	IVSize = 8
)

// Session holds the two CBC contexts of an established connection.
// Both contexts are stateful: CBC chaining continues across frames for
// the life of the connection.
type Session struct {
	mu  sync.Mutex
	enc cipher.BlockMode
	dec cipher.BlockMode
}

// New derives the send and receive contexts from the shared key and
// the IV pair exchanged during the handshake.
func New(key, localIV, remoteIV []byte) (*Session, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(localIV) != IVSize || len(remoteIV) != IVSize {
		return nil, ErrInvalidIVSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	sendIV := make([]byte, 0, aes.BlockSize)
	sendIV = append(sendIV, localIV...)
	sendIV = append(sendIV, remoteIV...)

	recvIV := make([]byte, 0, aes.BlockSize)
	recvIV = append(recvIV, remoteIV...)
	recvIV = append(recvIV, localIV...)

	return &Session{
		enc: cipher.NewCBCEncrypter(block, sendIV),
		dec: cipher.NewCBCDecrypter(block, recvIV),
	}, nil
}

// Encrypt pads the plaintext with spaces to a block multiple and
// encrypts it with the sending context.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	padded := Pad(plaintext)

	s.mu.Lock()
	defer s.mu.Unlock()

	ciphertext := make([]byte, len(padded))
	s.enc.CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt decrypts ciphertext with the receiving context and returns
// the plaintext with trailing padding removed. The result is verified
// to be UTF-8; JSON decoding is the caller's business.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextSize
	}

	s.mu.Lock()
	plaintext := make([]byte, len(ciphertext))
	s.dec.CryptBlocks(plaintext, ciphertext)
	s.mu.Unlock()

	trimmed := TrimPadding(plaintext)
	if !utf8.Valid(trimmed) {
		return nil, ErrNotUTF8
	}
	return trimmed, nil
}

// Pad right-pads data with ASCII spaces to a multiple of the AES block
// size. Data already on a block boundary is returned unchanged.
func Pad(data []byte) []byte {
	rem := len(data) % aes.BlockSize
	if rem == 0 && len(data) > 0 {
		return data
	}
	padded := make([]byte, len(data), len(data)+aes.BlockSize-rem)
	copy(padded, data)
	for len(padded)%aes.BlockSize != 0 || len(padded) == 0 {
		padded = append(padded, ' ')
	}
	return padded
}

// TrimPadding strips trailing whitespace from decrypted plaintext.
// Tolerates any trailing whitespace, not only the spaces we emit.
func TrimPadding(data []byte) []byte {
	return bytes.TrimRight(data, " \t\r\n\x00")
}

// NewIV returns a fresh random 8-byte initial vector. A new one is
// generated for every connection; the key itself never travels on the
// wire.
func NewIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	return iv, nil
}
