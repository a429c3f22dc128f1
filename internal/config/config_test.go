package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("reads API settings from environment", func(t *testing.T) {
		t.Setenv("API_HOST_URL", "https://elab.example.org/api/v2")
		t.Setenv("API_KEY", "3-secret")

		cfg := NewConfig()

		assert.Equal(t, "https://elab.example.org/api/v2", cfg.API.HostURL)
		assert.Equal(t, "3-secret", cfg.API.Key)
		assert.False(t, cfg.API.VerifyTLS)
		assert.Equal(t, DefaultLogFile, cfg.Log.File)
	})

	t.Run("TLS verification can be enabled", func(t *testing.T) {
		t.Setenv("API_HOST_URL", "https://elab.example.org/api/v2")
		t.Setenv("API_KEY", "3-secret")
		t.Setenv("API_VERIFY_TLS", "true")

		cfg := NewConfig()

		assert.True(t, cfg.API.VerifyTLS)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		cfg := &Config{API: API{HostURL: "https://elab.example.org/api/v2", Key: "3-secret"}}
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing host URL is reported", func(t *testing.T) {
		cfg := &Config{API: API{Key: "3-secret"}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API_HOST_URL")
	})

	t.Run("missing API key is reported", func(t *testing.T) {
		cfg := &Config{API: API{HostURL: "https://elab.example.org/api/v2"}}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API_KEY")
	})
}
