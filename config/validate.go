// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validNetworks lists the networks with known address prefixes.
var validNetworks = map[string]bool{
	"mainnet":    true,
	"testnet-10": true,
	"testnet-11": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validNetworks[cfg.Network] {
		return ErrInvalidNetwork
	}

	if cfg.APIURL != "" {
		if err := validateURL(cfg.APIURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAPIURL, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.RevealDelay < 0 {
		return fmt.Errorf("%w: reveal delay %s", ErrInvalidDuration, cfg.RevealDelay)
	}
	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: HTTP timeout %s", ErrInvalidDuration, cfg.HTTPTimeout)
	}
	if cfg.RevealOutputAmount == 0 {
		return ErrInvalidRevealOutput
	}
	if cfg.HTTPRetries < 0 {
		return ErrInvalidRetries
	}

	return nil
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	return nil
}
