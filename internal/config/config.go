package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

const FileName = "virusbegone.yaml"

const (
	DefaultQuickLimit  = 500
	DefaultCustomLimit = 1000
	DefaultEventBuffer = 1024
)

// Config holds all tunable settings. Relative directories are resolved against the base directory.
type Config struct {
	SignaturesDir  string `yaml:"signatures_dir"`
	QuarantineDir  string `yaml:"quarantine_dir"`
	DefaultRoot    string `yaml:"default_root"`
	QuickLimit     int    `yaml:"quick_limit"`
	CustomLimit    int    `yaml:"custom_limit"`
	Workers        int    `yaml:"workers"`
	EventBuffer    int    `yaml:"event_buffer"`
	ReloadSchedule string `yaml:"reload_schedule"` //cron spec, empty disables scheduled reloads
}

// Load reads the YAML file at path. A missing file yields the defaults.
func Load(path string, baseDir string) (Config, error) {
	var c Config
	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("reading config failed: %w", err)
	}
	if err == nil {
		if err := yaml.UnmarshalStrict(content, &c); err != nil {
			return c, fmt.Errorf("config %s is malformed: %w", path, err)
		}
	}
	c.ApplyDefaults(baseDir)
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config %s is invalid: %w", path, err)
	}
	return c, nil
}

func (c *Config) ApplyDefaults(baseDir string) {
	if c.SignaturesDir == "" {
		c.SignaturesDir = "signatures"
	}
	if c.QuarantineDir == "" {
		c.QuarantineDir = "quarantine"
	}
	c.SignaturesDir = resolve(baseDir, c.SignaturesDir)
	c.QuarantineDir = resolve(baseDir, c.QuarantineDir)
	if c.DefaultRoot == "" {
		c.DefaultRoot = systemRoot()
	}
	if c.QuickLimit == 0 {
		c.QuickLimit = DefaultQuickLimit
	}
	if c.CustomLimit == 0 {
		c.CustomLimit = DefaultCustomLimit
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = DefaultEventBuffer
	}
}

func (c Config) Validate() error {
	switch {
	case c.QuickLimit < 0:
		return errors.New("quick_limit must be positive")
	case c.CustomLimit < 0:
		return errors.New("custom_limit must be positive")
	case c.Workers < 0:
		return errors.New("workers must be positive")
	case c.EventBuffer < 0:
		return errors.New("event_buffer must be positive")
	case filepath.Clean(c.SignaturesDir) == filepath.Clean(c.QuarantineDir):
		return errors.New("signatures and quarantine must not share a directory")
	}
	return nil
}

func resolve(baseDir string, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

func systemRoot() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}
