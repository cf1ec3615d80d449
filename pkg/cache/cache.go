// Package cache persists the controller's local JSON caches: the AES
// key table (aes.json) and the per-product device configs
// (device.configs.json), kept in a data directory under the user's
// home (default ~/.klyqa).
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/backkem/klyqa-lan/pkg/device"
)

// Cache file names inside the data directory.
const (
	DefaultDirName  = ".klyqa"
	KeysFileName    = "aes.json"
	ConfigsFileName = "device.configs.json"
	dirPermissions  = 0o700
	filePermissions = 0o600
)

// Storage abstracts persistence of the controller caches.
// Implementations can use files or in-memory storage.
//
// All methods must be safe for concurrent use by a single controller.
type Storage interface {
	// AES key table, unit-id slug -> 16-byte key in hex.
	LoadKeys() (map[string]string, error)
	SaveKeys(keys map[string]string) error

	// Device configs, product id -> config.
	LoadConfigs() (map[string]*device.Config, error)
	SaveConfigs(configs map[string]*device.Config) error
}

// DirStorage is the file-backed Storage rooted at a data directory.
type DirStorage struct {
	dir string
}

// DefaultDir resolves ~/.klyqa.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// NewDirStorage creates the data directory if needed and returns the
// storage rooted there. An empty dir selects the default location.
func NewDirStorage(dir string) (*DirStorage, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &DirStorage{dir: dir}, nil
}

// Dir returns the data directory path.
func (s *DirStorage) Dir() string { return s.dir }

// LoadKeys implements Storage. A missing file is an empty table.
func (s *DirStorage) LoadKeys() (map[string]string, error) {
	keys := make(map[string]string)
	if err := s.load(KeysFileName, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// SaveKeys implements Storage.
func (s *DirStorage) SaveKeys(keys map[string]string) error {
	return s.store(KeysFileName, keys)
}

// LoadConfigs implements Storage. A missing file is an empty catalog.
func (s *DirStorage) LoadConfigs() (map[string]*device.Config, error) {
	configs := make(map[string]*device.Config)
	if err := s.load(ConfigsFileName, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// SaveConfigs implements Storage.
func (s *DirStorage) SaveConfigs(configs map[string]*device.Config) error {
	return s.store(ConfigsFileName, configs)
}

func (s *DirStorage) load(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

// store writes via a temp file and rename so a crash mid-write never
// leaves a torn cache behind.
func (s *DirStorage) store(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return fmt.Errorf("writing %s: %w", name, werr)
		}
		return fmt.Errorf("writing %s: %w", name, cerr)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// MemoryStorage is the in-memory Storage used by tests and callers
// that manage persistence themselves.
type MemoryStorage struct {
	Keys    map[string]string
	Configs map[string]*device.Config
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Keys:    make(map[string]string),
		Configs: make(map[string]*device.Config),
	}
}

// LoadKeys implements Storage.
func (m *MemoryStorage) LoadKeys() (map[string]string, error) {
	out := make(map[string]string, len(m.Keys))
	for k, v := range m.Keys {
		out[k] = v
	}
	return out, nil
}

// SaveKeys implements Storage.
func (m *MemoryStorage) SaveKeys(keys map[string]string) error {
	m.Keys = make(map[string]string, len(keys))
	for k, v := range keys {
		m.Keys[k] = v
	}
	return nil
}

// LoadConfigs implements Storage.
func (m *MemoryStorage) LoadConfigs() (map[string]*device.Config, error) {
	out := make(map[string]*device.Config, len(m.Configs))
	for k, v := range m.Configs {
		out[k] = v
	}
	return out, nil
}

// SaveConfigs implements Storage.
func (m *MemoryStorage) SaveConfigs(configs map[string]*device.Config) error {
	m.Configs = make(map[string]*device.Config, len(configs))
	for k, v := range configs {
		m.Configs[k] = v
	}
	return nil
}
