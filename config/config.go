package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings is the persisted application configuration.
type Settings struct {
	Server      ServerSettings      `json:"server"`
	Database    DatabaseSettings    `json:"database"`
	Log         LogSettings         `json:"log"`
	Recommender RecommenderSettings `json:"recommender"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	ListenAddr string `json:"listenAddr"`
}

// DatabaseSettings configures the SQLite store.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// LogSettings configures rotating file logging.
type LogSettings struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
	Level      string `json:"level"` // debug | info | warn | error
}

// RecommenderSettings tunes the recommendation pipeline.
type RecommenderSettings struct {
	// MaxAgeHours is how old a stored ranked set may be before it is stale.
	MaxAgeHours int `json:"maxAgeHours"`
	// MaxStored caps the ranked list written per generation.
	MaxStored int `json:"maxStored"`
	// CandidateLimit caps the candidate query.
	CandidateLimit int `json:"candidateLimit"`
	// RefreshConcurrency bounds the sweep worker pool.
	RefreshConcurrency int `json:"refreshConcurrency"`
}

// DefaultSettings returns the configuration used when no file exists yet.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			ListenAddr: ":8080",
		},
		Database: DatabaseSettings{
			Path: "data/cinerank.db",
		},
		Log: LogSettings{
			Path:       "data/log/cinerank.log",
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Level:      "info",
		},
		Recommender: RecommenderSettings{
			MaxAgeHours:        24,
			MaxStored:          100,
			CandidateLimit:     5000,
			RefreshConcurrency: 4,
		},
	}
}

// Manager loads and saves the settings file. Concurrent readers share one
// in-memory copy guarded by the mutex.
type Manager struct {
	path string

	mu       sync.RWMutex
	settings *Settings
}

// NewManager creates a manager for the settings file at path. The file is
// created with defaults on first load if it does not exist.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load returns the current settings, reading the file on first use.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	if m.settings != nil {
		s := *m.settings
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings != nil {
		return *m.settings, nil
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		defaults := DefaultSettings()
		m.settings = &defaults
		if err := m.saveLocked(); err != nil {
			return defaults, err
		}
		return defaults, nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings: %w", err)
	}
	m.settings = &settings
	return settings, nil
}

// Save replaces the settings in memory and on disk.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &settings
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	dir := filepath.Dir(m.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
