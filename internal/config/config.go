// Package config provides YAML-based configuration loading for hangar.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level hangar configuration, loaded from config.yaml.
type Config struct {
	Database             DatabaseConfig `yaml:"database"`
	Policy               PolicyConfig   `yaml:"policy"`
	FindingsPerWorkOrder int            `yaml:"findings_per_work_order"`
	Evidence             EvidenceConfig `yaml:"evidence"`
	Server               ServerConfig   `yaml:"server"`
	Audit                AuditConfig    `yaml:"audit"`
	Log                  LogConfig      `yaml:"log"`
}

// DatabaseConfig locates the SQLite file holding work orders and the ledger.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PolicyConfig selects how concurrent sessions are treated.
type PolicyConfig struct {
	SingleGlobalSession bool `yaml:"single_global_session"`
}

// EvidenceConfig controls where close-out photos are kept.
type EvidenceConfig struct {
	Dir     string `yaml:"dir"`
	MaxSize int64  `yaml:"max_size"` // bytes
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AuditConfig drives the long-running session report.
type AuditConfig struct {
	Schedule   string        `yaml:"schedule"`
	MaxSession time.Duration `yaml:"max_session"`
}

// LogConfig sets the slog level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultPath returns ~/.hangar/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hangar", "config.yaml"), nil
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() error {
	if c.Database.Path == "" || c.Evidence.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: home directory: %w", err)
		}
		if c.Database.Path == "" {
			c.Database.Path = filepath.Join(home, ".hangar", "hangar.db")
		}
		if c.Evidence.Dir == "" {
			c.Evidence.Dir = filepath.Join(home, ".hangar", "evidence")
		}
	}
	if c.FindingsPerWorkOrder == 0 {
		c.FindingsPerWorkOrder = 5
	}
	if c.Evidence.MaxSize == 0 {
		c.Evidence.MaxSize = 10 << 20
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Audit.Schedule == "" {
		c.Audit.Schedule = "@every 15m"
	}
	if c.Audit.MaxSession == 0 {
		c.Audit.MaxSession = 12 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.FindingsPerWorkOrder < 1 || c.FindingsPerWorkOrder > 99 {
		errs = append(errs, "findings_per_work_order must be between 1 and 99")
	}
	if c.Evidence.MaxSize < 0 {
		errs = append(errs, "evidence.max_size must not be negative")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if _, err := cron.ParseStandard(c.Audit.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("audit.schedule %q: %v", c.Audit.Schedule, err))
	}
	if c.Audit.MaxSession < 0 {
		errs = append(errs, "audit.max_session must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
	}
	return lvl, nil
}
