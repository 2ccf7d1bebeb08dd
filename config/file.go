package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/datarhei/srtrelay/encoding/json"
)

// Load returns a Config with the defaults overwritten by the JSON file at
// path. A missing file is not an error. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadFile is like Load, but the file at path has to exist.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	cfg := New()
	cfg.LoadedAt = time.Now()

	if len(path) == 0 {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config from '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg.Data); err != nil {
		return nil, fmt.Errorf("failed to parse config from '%s': %w", path, err)
	}

	cfg.LoadedAt = time.Now()

	return cfg, nil
}

// Marshal returns the indented JSON representation of the configuration.
func (d *Config) Marshal() ([]byte, error) {
	return json.MarshalIndent(&d.Data, "", "    ")
}
