package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mistmcp/internal/domain"
)

func TestDefaultServeConfig_Validates(t *testing.T) {
	cfg := DefaultServeConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.ToolModeManaged, cfg.ToolMode())
	assert.Equal(t, "127.0.0.1:8000", cfg.ListenAddr())
}

func TestServeConfig_ValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ServeConfig)
		want   string
	}{
		{"transport", func(c *ServeConfig) { c.Transport = "sse" }, "transport"},
		{"mode", func(c *ServeConfig) { c.Mode = "everything" }, "everything"},
		{"format", func(c *ServeConfig) { c.ResponseFormat = "xml" }, "xml"},
		{"timeout", func(c *ServeConfig) { c.SessionTimeout = 0 }, "session-timeout"},
		{"sweep", func(c *ServeConfig) { c.SweepInterval = -time.Second }, "sweep-interval"},
		{"port", func(c *ServeConfig) { c.Transport = TransportHTTP; c.Port = 70000 }, "port"},
		{"path", func(c *ServeConfig) { c.Transport = TransportHTTP; c.Path = "mcp" }, "path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultServeConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			code, ok := domain.CodeFrom(err)
			require.True(t, ok)
			assert.Equal(t, domain.CodeInvalidArgument, code)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestServeConfig_StdioIgnoresListenSettings(t *testing.T) {
	cfg := DefaultServeConfig()
	cfg.Port = 0
	cfg.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestServeConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := DefaultServeConfig()
	cfg.Transport = "sse"
	cfg.SessionTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "session-timeout")
}

func TestServeConfig_NormalizeFoldsCase(t *testing.T) {
	cfg := DefaultServeConfig()
	cfg.Transport = " HTTP "
	cfg.Mode = "Managed"
	cfg.ResponseFormat = "JSON"
	require.NoError(t, cfg.Validate())

	normalized := cfg.Normalize()
	assert.Equal(t, TransportHTTP, normalized.Transport)
	assert.Equal(t, "managed", normalized.Mode)
	assert.Equal(t, "json", normalized.ResponseFormat)
	assert.Equal(t, TransportHTTP, NewScopeResolver(cfg).Transport)

	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestInstructions(t *testing.T) {
	assert.Contains(t, Instructions(domain.ToolModeManaged), "MANAGED MODE")
	assert.Contains(t, Instructions(domain.ToolModeAll), "ALL TOOLS MODE")
	assert.Contains(t, Instructions(domain.ToolModeCustom), "CUSTOM MODE")
}
