package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load returns defaults overlaid with the yaml file at path.
// Empty path probes the working directory and then ConfigDir.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "Failed to load config from %q", path)
		}
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		filepath.Join(".", FileName),
		filepath.Join(ConfigDir(), FileName),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "vrm_transform")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "vrm_transform")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "vrm_transform")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "vrm_transform")
	}
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Overrides are the command line values, zero values keep the loaded setting.
type Overrides struct {
	Steps    string
	Layout   string
	LogLevel string
	LogFile  string
	Addr     string
}

func (c *Config) Apply(o Overrides) {
	if o.Steps != "" {
		steps := make([]string, 0)
		for _, name := range strings.Split(o.Steps, ",") {
			if name = strings.TrimSpace(name); name != "" {
				steps = append(steps, name)
			}
		}
		c.Pipeline.Steps = steps
	}
	if o.Layout != "" {
		c.Output.VertexLayout = o.Layout
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFile != "" {
		c.Logging.File = o.LogFile
	}
	if o.Addr != "" {
		c.Web.Addr = o.Addr
	}
}
