// Copyright 2026 The bindoc Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package config loads the configuration of the bindoc command.
//
// Configuration comes from a single YAML file named by the --config flag
// or the BINDOC_CONFIG environment variable.  There is no discovery; with
// neither set the defaults apply.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "BINDOC_CONFIG"

// Config is the configuration of the bindoc command.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// Formats are the enabled formats in the order they are tried.  Empty
	// means every built-in format.
	Formats []string `yaml:"formats"`

	// Mmap maps input files into memory instead of reading them.
	Mmap bool `yaml:"mmap"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		Mmap:     true,
	}
}

// Load loads the file named by BINDOC_CONFIG, or returns the defaults
// when it is not set.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of the defaults.  Unknown
// fields are an error.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the log level and the format list.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Formats))
	for _, name := range c.Formats {
		if name == "" {
			return errors.New("formats: empty format name")
		}
		if seen[name] {
			return fmt.Errorf("formats: %q listed twice", name)
		}
		seen[name] = true
	}
	return nil
}

// Level returns the configured log level, or warn when it is invalid.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
