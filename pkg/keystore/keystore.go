// Package keystore holds the AES key table of the controller: one
// 16-byte pre-shared key per unit id, with a reserved wildcard entry
// that applies to every device.
package keystore

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/backkem/klyqa-lan/pkg/device"
	"github.com/backkem/klyqa-lan/pkg/session"
)

// WildcardID is the reserved table key whose entry encrypts traffic to
// every device. When present it wins over per-unit keys.
const WildcardID = "all"

// Device-key fallback derivation parameters. The fallback derives a
// per-device key from the unit id when no provisioned key exists; it
// must be enabled explicitly because it only matches devices that were
// onboarded with the same scheme.
const (
	fallbackSalt       = "qcx-device-key"
	fallbackIterations = 4096
)

// Store is the in-memory key table. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	keys     map[string][]byte
	fallback bool
}

// New creates an empty key store.
func New() *Store {
	return &Store{keys: make(map[string][]byte)}
}

// Set stores a key for a unit id (slugified). The key must be 16 bytes.
func (s *Store) Set(unitID string, key []byte) error {
	if len(key) != session.KeySize {
		return ErrKeySize
	}
	slug := canonical(unitID)
	if slug == "" {
		return ErrEmptyUnitID
	}

	k := make([]byte, session.KeySize)
	copy(k, key)

	s.mu.Lock()
	s.keys[slug] = k
	s.mu.Unlock()
	return nil
}

// SetHex stores a hex-encoded key, the form used by the aes.json cache.
func (s *Store) SetHex(unitID, hexKey string) error {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return ErrKeyEncoding
	}
	return s.Set(unitID, key)
}

// KeyFor resolves the key for a unit id. Selection order: the wildcard
// entry wins, then the per-unit key, then the derived device-key
// fallback when enabled. A miss returns ErrMissingKey.
func (s *Store) KeyFor(unitID string) ([]byte, error) {
	slug := canonical(unitID)

	s.mu.RLock()
	key, ok := s.keys[WildcardID]
	if !ok {
		key, ok = s.keys[slug]
	}
	fallback := s.fallback
	s.mu.RUnlock()

	if ok {
		out := make([]byte, session.KeySize)
		copy(out, key)
		return out, nil
	}
	if fallback && slug != "" && slug != WildcardID {
		return DeriveDeviceKey(slug), nil
	}
	return nil, ErrMissingKey
}

// Has reports whether a key (wildcard included) exists for the unit id.
func (s *Store) Has(unitID string) bool {
	_, err := s.KeyFor(unitID)
	return err == nil
}

// EnableDeviceKeyFallback turns on derived per-device keys for units
// without a provisioned key.
func (s *Store) EnableDeviceKeyFallback() {
	s.mu.Lock()
	s.fallback = true
	s.mu.Unlock()
}

// Load replaces the table from a slug -> hex-key map, the shape of the
// aes.json cache. Invalid entries abort the load.
func (s *Store) Load(hexKeys map[string]string) error {
	decoded := make(map[string][]byte, len(hexKeys))
	for unitID, hexKey := range hexKeys {
		key, err := hex.DecodeString(hexKey)
		if err != nil || len(key) != session.KeySize {
			return ErrKeyEncoding
		}
		slug := canonical(unitID)
		if slug == "" {
			return ErrEmptyUnitID
		}
		decoded[slug] = key
	}

	s.mu.Lock()
	s.keys = decoded
	s.mu.Unlock()
	return nil
}

// Export returns the table as a slug -> hex-key map for persisting.
func (s *Store) Export() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.keys))
	for slug, key := range s.keys {
		out[slug] = hex.EncodeToString(key)
	}
	return out
}

// Len returns the number of provisioned keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// DeriveDeviceKey derives the fallback key for a unit id with
// PBKDF2-SHA256 over the slug and the vendor salt.
func DeriveDeviceKey(unitID string) []byte {
	return pbkdf2.Key([]byte(canonical(unitID)), []byte(fallbackSalt), fallbackIterations, session.KeySize, sha256.New)
}

// canonical slugifies everything except the wildcard, which is kept
// verbatim.
func canonical(unitID string) string {
	if unitID == WildcardID {
		return WildcardID
	}
	return device.Slugify(unitID)
}
