package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkPresets(t *testing.T) {
	tests := []struct {
		network string
		url     string
	}{
		{"mainnet", "https://api.kaspa.org"},
		{"testnet-10", "https://api-tn10.kaspa.org"},
		{"testnet-11", "https://api-tn11.kaspa.org"},
	}
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			preset, ok := NetworkPresets[tt.network]
			require.True(t, ok, "preset should exist for %s", tt.network)
			assert.Equal(t, tt.url, preset.URL)
		})
	}
}

func TestResolveConfigPresetFallback(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "https://api.kaspa.org", cfg.URL)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
}

func TestResolveConfigEnvOverridesPreset(t *testing.T) {
	env := map[string]string{
		"KASPA_API_URL":      "http://env-api:8000",
		"KASPA_HTTP_TIMEOUT": "5s",
		"KASPA_HTTP_RETRIES": "1",
	}
	cfg, err := ResolveConfig(nil, env, "testnet-10")
	require.NoError(t, err)
	assert.Equal(t, "http://env-api:8000", cfg.URL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Retries)
}

func TestResolveConfigFlagsOverrideAll(t *testing.T) {
	flags := &Config{URL: "http://custom:9999", Timeout: time.Second, Retries: 7}
	env := map[string]string{"KASPA_API_URL": "http://env-api:8000"}
	cfg, err := ResolveConfig(flags, env, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "http://custom:9999", cfg.URL)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.Retries)
}

func TestResolveConfigUnknownNetworkRequiresExplicit(t *testing.T) {
	_, err := ResolveConfig(nil, nil, "devnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devnet")

	cfg, err := ResolveConfig(&Config{URL: "http://localhost:8000"}, nil, "devnet")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.URL)
}

func TestResolveConfigBadEnv(t *testing.T) {
	_, err := ResolveConfig(nil, map[string]string{"KASPA_HTTP_TIMEOUT": "soon"}, "mainnet")
	assert.Error(t, err)
	_, err = ResolveConfig(nil, map[string]string{"KASPA_HTTP_RETRIES": "many"}, "mainnet")
	assert.Error(t, err)
	_, err = ResolveConfig(nil, map[string]string{"KASPA_HTTP_RETRIES": "-1"}, "mainnet")
	assert.Error(t, err)
}
