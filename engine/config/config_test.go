package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-descriptors/engine/renderer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) {
	return "", false
}

func mapEnv(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", WithLookupEnv(noEnv))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	bt, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, renderer.BackendTypeHost, bt)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "oxy.toml", `
frames_in_flight = 3
backend = "wgpu"
log_level = "debug"
profiling = true

[window]
title = "demo"
width = 800
height = 600
`)
	cfg, err := Load(path, WithLookupEnv(noEnv))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.FramesInFlight)
	assert.Equal(t, "wgpu", cfg.Backend)
	assert.True(t, cfg.Profiling)
	assert.Equal(t, WindowConfig{Title: "demo", Width: 800, Height: 600}, cfg.Window)
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger().GetLevel())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "oxy.toml", "frames = 3\n")
	_, err := Load(path, WithLookupEnv(noEnv))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "oxy.toml", "frames_in_flight = 3\n")
	envFile := writeFile(t, ".env", "OXY_FRAMES_IN_FLIGHT=4\nOXY_HOST_COHERENT=true\nOXY_WINDOW_TITLE=from-dotenv\n")

	cfg, err := Load(path,
		WithEnvFiles(envFile, filepath.Join(t.TempDir(), "missing.env")),
		WithLookupEnv(mapEnv(map[string]string{"OXY_WINDOW_TITLE": "from-env"})),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.FramesInFlight)
	assert.True(t, cfg.HostCoherent)
	assert.Equal(t, "from-env", cfg.Window.Title)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"zero frames":     {"OXY_FRAMES_IN_FLIGHT": "0"},
		"bad number":      {"OXY_FRAMES_IN_FLIGHT": "two"},
		"bad bool":        {"OXY_PROFILING": "sometimes"},
		"unknown backend": {"OXY_BACKEND": "metal"},
		"bad level":       {"OXY_LOG_LEVEL": "loud"},
		"bad window":      {"OXY_WINDOW_WIDTH": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", WithLookupEnv(mapEnv(env)))
			assert.Error(t, err)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.FramesInFlight = 3
	data, err := cfg.Encode()
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, Decode(data, &decoded))
	assert.Equal(t, cfg, decoded)
}
