package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"video-workflow/internal/domain"
)

// Store defines persistence operations for the app configuration.
type Store interface {
	Load() (domain.AppConfig, error)
	Save(domain.AppConfig) error
}

// JSONStore persists the configuration in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed configuration store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".video-workflow", "config.json"), nil
}

// Load reads the configuration from disk or returns defaults when missing.
func (s *JSONStore) Load() (domain.AppConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}

		return domain.AppConfig{}, err
	}

	var cfg domain.AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.AppConfig{}, err
	}

	return Normalize(cfg), nil
}

// Save writes the configuration as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(Normalize(cfg), "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}
