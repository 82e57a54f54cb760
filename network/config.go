package network

import (
	"fmt"
	"strconv"
	"time"
)

// Defaults applied by ResolveConfig when nothing overrides them.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3
)

// Config holds the connection parameters for a Kaspa REST API.
type Config struct {
	URL     string        `json:"url"`
	Network string        `json:"network"`
	Timeout time.Duration `json:"timeout"`
	// Retries is how many times idempotent requests are retried after the
	// first attempt. Broadcasts are never retried.
	Retries int `json:"retries"`
}

// NetworkPresets contains the public REST endpoints of known networks.
var NetworkPresets = map[string]Config{
	"mainnet":    {URL: "https://api.kaspa.org"},
	"testnet-10": {URL: "https://api-tn10.kaspa.org"},
	"testnet-11": {URL: "https://api-tn11.kaspa.org"},
}

// ResolveConfig merges configuration from three sources with decreasing priority:
//  1. Explicit flags (highest priority)
//  2. Environment variables (KASPA_API_URL, KASPA_HTTP_TIMEOUT, KASPA_HTTP_RETRIES)
//  3. Network presets (lowest priority)
//
// Networks without a preset require an explicit URL.
func ResolveConfig(flags *Config, env map[string]string, network string) (*Config, error) {
	result := Config{Network: network, Timeout: DefaultTimeout, Retries: DefaultRetries}

	if preset, ok := NetworkPresets[network]; ok {
		result.URL = preset.URL
	}

	if env != nil {
		if v, ok := env["KASPA_API_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["KASPA_HTTP_TIMEOUT"]; ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("network: KASPA_HTTP_TIMEOUT: %w", err)
			}
			result.Timeout = d
		}
		if v, ok := env["KASPA_HTTP_RETRIES"]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("network: KASPA_HTTP_RETRIES: %w", err)
			}
			result.Retries = n
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.Timeout > 0 {
			result.Timeout = flags.Timeout
		}
		if flags.Retries > 0 {
			result.Retries = flags.Retries
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("network: %q requires an explicit API URL (set KASPA_API_URL or the config file)", network)
	}
	if result.Timeout <= 0 {
		return nil, fmt.Errorf("network: timeout must be positive, got %s", result.Timeout)
	}
	if result.Retries < 0 {
		return nil, fmt.Errorf("network: retries must not be negative, got %d", result.Retries)
	}
	return &result, nil
}
