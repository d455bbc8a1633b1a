// Package config loads the Orpheus configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/ingest"
	"github.com/nickyhof/orpheus/ps"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither a flag nor EnvPath names a file.
const DefaultPath = "config.yaml"

// EnvPath overrides the configuration file location.
const EnvPath = "ORPHEUS_CONFIG"

type Meta struct {
	// Dir holds the metadata repository. Empty keeps metadata in memory.
	Dir    string `yaml:"dir"`
	GitURL string `yaml:"git_url,omitempty"`
}

type Server struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	Issuer    string `yaml:"issuer,omitempty"`
	Audience  string `yaml:"audience,omitempty"`
}

type Config struct {
	Store ps.Config `yaml:"store"`
	Meta  Meta      `yaml:"meta"`
	// Home is the base directory for relative checkout and init paths.
	Home     string          `yaml:"home"`
	LogLevel string          `yaml:"log_level"`
	User     core.Identity   `yaml:"user"`
	S3       ingest.S3Config `yaml:"s3"`
	Server   Server          `yaml:"server"`
}

func Default() Config {
	return Config{
		Store: ps.Config{
			Driver:        "sqlite",
			DSN:           "orpheus.db",
			Transactional: true,
		},
		Meta:     Meta{Dir: ".orpheus"},
		Home:     ".",
		LogLevel: "info",
		User:     core.Identity{Name: "orpheus", Email: "orpheus@localhost"},
		Server:   Server{Port: 7878},
	}
}

// Path returns explicit if set, else the EnvPath variable, else DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0600)
}

func (c Config) Validate() error {
	if _, err := ps.ParseDialect(c.Store.Driver); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &core.BadParametersError{Reason: err.Error()}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &core.BadParametersError{Reason: fmt.Sprintf("invalid server port %d", c.Server.Port)}
	}
	return nil
}

// Logger returns a logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
