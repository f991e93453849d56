package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Medium struct {
		Type     string `yaml:"type"` // "file", "bolt" or "serial"
		Path     string `yaml:"path"`
		Size     int    `yaml:"size"`
		PageSize int    `yaml:"page_size"`
		Port     string `yaml:"port"`
		Baud     int    `yaml:"baud"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"medium"`
	Store struct {
		Base            int    `yaml:"base"`
		Stride          int    `yaml:"stride"`
		MinSaveInterval string `yaml:"min_save_interval"`
	} `yaml:"store"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) validate() error {
	switch c.Medium.Type {
	case "file", "bolt":
		if c.Medium.Path == "" {
			return fmt.Errorf("medium.path is required for %s medium", c.Medium.Type)
		}
		if c.Medium.Size <= 0 {
			return fmt.Errorf("medium.size must be positive, got %d", c.Medium.Size)
		}
	case "serial":
		if c.Medium.Port == "" {
			return fmt.Errorf("medium.port is required for serial medium")
		}
	default:
		return fmt.Errorf("unknown medium type: %q (supported: file, bolt, serial)", c.Medium.Type)
	}
	if c.Store.Base < 0 {
		return fmt.Errorf("store.base must not be negative")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format: %q (supported: text, json)", c.Log.Format)
	}
	if _, err := c.timeout(); err != nil {
		return err
	}
	if _, err := c.minSaveInterval(); err != nil {
		return err
	}
	return nil
}

func (c *Config) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Medium.Timeout)
	if err != nil {
		return 0, fmt.Errorf("medium.timeout: %w", err)
	}
	return d, nil
}

func (c *Config) minSaveInterval() (time.Duration, error) {
	if c.Store.MinSaveInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Store.MinSaveInterval)
	if err != nil {
		return 0, fmt.Errorf("store.min_save_interval: %w", err)
	}
	return d, nil
}

// loadConfig reads path and fills in defaults. A missing file is only an
// error when required is set.
func loadConfig(path string, required bool) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if cfg.Medium.Type == "" {
		cfg.Medium.Type = "file"
	}
	if cfg.Medium.Path == "" {
		switch cfg.Medium.Type {
		case "bolt":
			cfg.Medium.Path = "prefs.db"
		default:
			cfg.Medium.Path = "prefs.img"
		}
	}
	if cfg.Medium.Size == 0 {
		cfg.Medium.Size = 1024
	}
	if cfg.Medium.PageSize == 0 {
		cfg.Medium.PageSize = 64
	}
	if cfg.Medium.Baud == 0 {
		cfg.Medium.Baud = 115200
	}
	if cfg.Medium.Timeout == "" {
		cfg.Medium.Timeout = "500ms"
	}
	if cfg.Store.Stride == 0 {
		cfg.Store.Stride = 64
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

// newLogger builds the CLI logger writing to w. Level names are the ones
// slog.Level understands ("debug", "warn", "error+2", ...).
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
