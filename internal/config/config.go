package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.gnd/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	Firebase       Firebase `toml:"firebase"`
	Remote         Remote   `toml:"remote"`
}

// Firebase holds the backend project settings.
type Firebase struct {
	ProjectID       string `toml:"project_id"`
	CredentialsFile string `toml:"credentials_file"`
}

// Remote holds Firestore collection names. Zero values fall back to the
// backend defaults via Collections().
type Remote struct {
	SurveysCollection string `toml:"surveys_collection"`
	ConfigCollection  string `toml:"config_collection"`
}

// Collections returns the configured collection names with defaults applied.
func (r Remote) Collections() (surveys, config string) {
	surveys, config = r.SurveysCollection, r.ConfigCollection
	if surveys == "" {
		surveys = "surveys"
	}
	if config == "" {
		config = "config"
	}
	return surveys, config
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
