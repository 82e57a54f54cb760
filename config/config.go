// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads libkaspa-go settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	// ConfigFileName is the name of the config file inside the data directory.
	ConfigFileName = "config.yaml"

	// PendingDBFileName is the bbolt file holding pending token transfers.
	PendingDBFileName = "pending.db"

	// DefaultRevealOutputAmount is what a reveal returns to the sender, in sompi.
	DefaultRevealOutputAmount = 20_000_000
)

// Duration is a time.Duration written as a string such as "2s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDuration, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML writes d in time.Duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds all library settings.
type Config struct {
	Network            string   `yaml:"network"`
	DataDir            string   `yaml:"data_dir"`
	APIURL             string   `yaml:"api_url,omitempty"`
	LogLevel           string   `yaml:"log_level"`
	LogJSON            bool     `yaml:"log_json"`
	LogFile            string   `yaml:"log_file,omitempty"`
	RevealDelay        Duration `yaml:"reveal_delay"`
	RevealOutputAmount uint64   `yaml:"reveal_output_amount"`
	HTTPTimeout        Duration `yaml:"http_timeout"`
	HTTPRetries        int      `yaml:"http_retries"`
}

// DefaultConfig returns a Config with every field populated.
func DefaultConfig() Config {
	return Config{
		Network:            "mainnet",
		DataDir:            DefaultDataDir(),
		LogLevel:           "info",
		RevealDelay:        Duration(2 * time.Second),
		RevealOutputAmount: DefaultRevealOutputAmount,
		HTTPTimeout:        Duration(30 * time.Second),
		HTTPRetries:        3,
	}
}

// DefaultDataDir returns ~/.libkaspa, or .libkaspa when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libkaspa"
	}
	return filepath.Join(home, ".libkaspa")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// PendingDBPath returns where the pending transfer store lives.
func (c Config) PendingDBPath() string {
	return filepath.Join(c.DataDir, PendingDBFileName)
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their DefaultConfig values and unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	header := []byte("# libkaspa-go configuration\n")
	return os.WriteFile(path, append(header, data...), 0600)
}

// ApplyEnv overrides cfg with KASPA_* variables from env.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := env["KASPA_NETWORK"]; v != "" {
		c.Network = v
	}
	if v := env["KASPA_DATA_DIR"]; v != "" {
		c.DataDir = v
	}
	if v := env["KASPA_API_URL"]; v != "" {
		c.APIURL = v
	}
	if v := env["KASPA_LOG_LEVEL"]; v != "" {
		c.LogLevel = v
	}
	if v := env["KASPA_LOG_JSON"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: KASPA_LOG_JSON: %w", err)
		}
		c.LogJSON = b
	}
	if v := env["KASPA_REVEAL_DELAY"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: KASPA_REVEAL_DELAY: %w", ErrInvalidDuration, err)
		}
		c.RevealDelay = Duration(d)
	}
	return nil
}

// EnvMap returns the process environment as a map for ApplyEnv.
func EnvMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
