package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFile(t *testing.T) {
	v, err := Load(t.TempDir(), "missing")
	require.NoError(t, err)

	v.SetDefault("server.port", 8080)
	assert.Equal(t, 8080, v.GetInt("server.port"))
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  host: 127.0.0.1\n  port: 9000\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), yaml, 0o600))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("APP_LISTEN_HOST", "10.0.0.1")

	v, err := Load(dir, "app")
	require.NoError(t, err)
	require.NoError(t, BindEnvs(v, map[string]string{"server.host": "APP_LISTEN_HOST"}))

	assert.Equal(t, 9100, v.GetInt("server.port"))
	assert.Equal(t, "10.0.0.1", v.GetString("server.host"))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := Load(dir, "bad")
	assert.Error(t, err)
}
