package config

import (
	"fmt"
	"sync"

	"tools.zach/dev/mediacord/internal/paths"
)

// Store reads and writes the config file in a data directory. Every Load
// goes back to disk so edits made by another process are always seen.
type Store struct {
	dir string
	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewStore returns a Store for dataDir/config.toml.
func NewStore(dataDir string) *Store {
	return &Store{dir: dataDir}
}

// Path returns the config file path.
func (s *Store) Path() string {
	return paths.DataDir{Root: s.dir}.Config()
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads the current config from disk.
func (s *Store) Load() (*Config, error) {
	return Load(s.dir)
}

// Update loads the config, applies fn to it, validates, and saves. Nothing
// is written if fn returns an error.
func (s *Store) Update(fn func(c *Config) error) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := Load(s.dir)
	if err != nil {
		return nil, err
	}
	next := cfg.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := next.Save(s.Path()); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	return next, nil
}
