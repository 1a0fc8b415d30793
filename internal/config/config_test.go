package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AI_GATEWAY_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, ProviderGateway, cfg.Provider)
	assert.Equal(t, "https://ai.gateway.lovable.dev/v1", cfg.Gateway.BaseURL)
	assert.Equal(t, "google/gemini-2.5-flash", cfg.Gateway.Model)
	assert.Equal(t, 0.7, cfg.Gateway.Temperature)
	assert.Equal(t, time.Duration(0), cfg.Gateway.Timeout)
	assert.Equal(t, "secret", cfg.Credential())
	assert.False(t, cfg.Cache.Enabled())
	assert.False(t, cfg.RequireDisclaimer)
}

func TestLoad_GeminiCredential(t *testing.T) {
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "g-key", cfg.Credential())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("provider", func(t *testing.T) {
		t.Setenv("AI_PROVIDER", "bard")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown AI_PROVIDER")
	})
	t.Run("temperature", func(t *testing.T) {
		t.Setenv("AI_TEMPERATURE", "warm")
		_, err := Load()
		assert.ErrorContains(t, err, "AI_TEMPERATURE")
	})
	t.Run("cache without key", func(t *testing.T) {
		t.Setenv("ANALYSIS_CACHE_PATH", "cache.db")
		t.Setenv("ANALYSIS_CACHE_KEY", "")
		_, err := Load()
		assert.ErrorContains(t, err, "ANALYSIS_CACHE_KEY")
	})
}

func TestLoad_TrimsGatewayURL(t *testing.T) {
	t.Setenv("AI_GATEWAY_URL", "http://localhost:9999/v1/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/v1", cfg.Gateway.BaseURL)
}
