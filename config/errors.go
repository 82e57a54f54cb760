// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet-10\", or \"testnet-11\")")

	// ErrInvalidAPIURL indicates the REST API URL is malformed.
	ErrInvalidAPIURL = errors.New("config: invalid API URL")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigFile indicates the config file is not valid YAML for Config.
	ErrInvalidConfigFile = errors.New("config: invalid configuration file")

	// ErrInvalidDuration indicates a duration that does not parse or is not positive.
	ErrInvalidDuration = errors.New("config: invalid duration")

	// ErrInvalidRevealOutput indicates a zero reveal output amount.
	ErrInvalidRevealOutput = errors.New("config: reveal output amount must be positive")

	// ErrInvalidRetries indicates a negative retry count.
	ErrInvalidRetries = errors.New("config: HTTP retries must not be negative")
)
