package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Storage      Storage `yaml:"storage"`
	HistoryLimit int     `yaml:"history_limit"`
	Web          Web     `yaml:"web"`
	LogLevel     string  `yaml:"log_level"`
}

type Storage struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path,omitempty"`
	DSN           string `yaml:"dsn,omitempty"`
	KeepSnapshots int    `yaml:"keep_snapshots,omitempty"`
}

type Web struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

func Default() Config {
	return Config{
		Storage:      Storage{Backend: BackendSQLite},
		HistoryLimit: 10,
		Web:          Web{Port: 8080},
		LogLevel:     "info",
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazytracker", "config.yaml"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, config.Validate()
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate reports settings no backend can work with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range", c.Web.Port)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// WithDefaults fills the settings left empty: the storage path goes next to
// the config file, the port and history limit fall back to Default.
func (c Config) WithDefaults(configPath string) Config {
	defaults := Default()
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.Path == "" {
		dir := filepath.Dir(configPath)
		switch c.Storage.Backend {
		case BackendSQLite:
			c.Storage.Path = filepath.Join(dir, "lazytracker.db")
		case BackendFile:
			c.Storage.Path = filepath.Join(dir, "lazytracker.csv")
		}
	}
	if c.Web.Port == 0 {
		c.Web.Port = defaults.Web.Port
	}
	if c.HistoryLimit < 1 {
		c.HistoryLimit = defaults.HistoryLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	return c
}

func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log_level %q", value)
}
