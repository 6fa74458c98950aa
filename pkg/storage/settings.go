package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultConcurrency = 4
	DefaultChunkSize   = 1 << 20

	maxConcurrency = 32
	minChunkSize   = 4 << 10
	maxChunkSize   = 64 << 20
)

// Settings represents application settings
type Settings struct {
	DefaultPort     int    `json:"defaultPort"`
	DefaultUsername string `json:"defaultUsername,omitempty"` // Empty means the local user name
	Concurrency     int    `json:"concurrency"`               // Simultaneous file transfers
	ChunkSize       int    `json:"chunkSize"`                 // Bytes copied between progress updates
	ShowHidden      bool   `json:"showHidden"`
	KnownHostsPath  string `json:"knownHostsPath,omitempty"` // Empty means ~/.ssh/known_hosts
	UseAgent        bool   `json:"useAgent"`
	WatchLocal      bool   `json:"watchLocal"` // Refresh the local pane when its directory changes
}

// Validate rejects values the transfer engine cannot work with.
func (s Settings) Validate() error {
	if s.DefaultPort <= 0 || s.DefaultPort > 65535 {
		return fmt.Errorf("invalid default port %d", s.DefaultPort)
	}
	if s.Concurrency < 1 || s.Concurrency > maxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", maxConcurrency)
	}
	if s.ChunkSize < minChunkSize || s.ChunkSize > maxChunkSize {
		return fmt.Errorf("chunk size must be between %d and %d bytes", minChunkSize, maxChunkSize)
	}
	return nil
}

// SettingsStore manages application settings
type SettingsStore struct {
	settings Settings
	filePath string
	mu       sync.RWMutex
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(dataDir string) (*SettingsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &SettingsStore{
		settings: getDefaultSettings(),
		filePath: filepath.Join(dataDir, "settings.json"),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := store.save(); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// getDefaultSettings returns default settings
func getDefaultSettings() Settings {
	return Settings{
		DefaultPort: 22,
		Concurrency: DefaultConcurrency,
		ChunkSize:   DefaultChunkSize,
		ShowHidden:  false,
		UseAgent:    true,
		WatchLocal:  true,
	}
}

// load reads settings from disk. Fields missing from the file keep their
// defaults; invalid values are reset to the defaults.
func (s *SettingsStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	settings := getDefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.filePath, err)
	}
	if err := settings.Validate(); err != nil {
		defaults := getDefaultSettings()
		settings.DefaultPort = defaults.DefaultPort
		settings.Concurrency = defaults.Concurrency
		settings.ChunkSize = defaults.ChunkSize
	}
	s.settings = settings
	return nil
}

// save writes settings to disk
func (s *SettingsStore) save() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return os.WriteFile(s.filePath, data, 0600)
}

// Get returns current settings
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update updates settings
func (s *SettingsStore) Update(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	return s.save()
}

func (s *SettingsStore) SetShowHidden(show bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.ShowHidden = show
	return s.save()
}

func (s *SettingsStore) SetConcurrency(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 1 || n > maxConcurrency {
		return errors.New("concurrency out of range")
	}
	s.settings.Concurrency = n
	return s.save()
}

// Reset resets settings to defaults
func (s *SettingsStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = getDefaultSettings()
	return s.save()
}

// GetDataDir returns the directory where settings are stored
func (s *SettingsStore) GetDataDir() string {
	return filepath.Dir(s.filePath)
}
