package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	ConfigPath string `json:"-"`
}

// LoadConfig fills config from configPath or config/<name>.json when present.
// Missing files are not an error; the caller falls back to environment variables.
func (c *BaseConfig) LoadConfig(configPath string, name string, config interface{}) error {
	paths := []string{filepath.Join("config", fmt.Sprintf("%s.json", name))}
	if configPath != "" {
		paths = append([]string{configPath}, paths...)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		log.Printf("Loaded %s model configuration from file: %s", name, path)
		return nil
	}

	// Fall back to environment variables
	log.Printf("Using environment variables for %s configuration", name)
	return nil
}
