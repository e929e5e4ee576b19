package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SaveTo writes the config to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "Failed to create config dir")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal config")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0644), "Failed to write %q", path)
}
