package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: mpr
  user: mpr
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "/dev/video0", cfg.Capture.Device)
	assert.Equal(t, 5, cfg.Capture.FPS)
	assert.Equal(t, 3, cfg.Capture.ClipSeconds)
	assert.Equal(t, 0.4, cfg.Vision.MatchThreshold)
	assert.Equal(t, "http://ip-api.com/json", cfg.Geolocation.URL)
	assert.Equal(t, 5*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MPR_SERVER_PORT", "9090")
	t.Setenv("MPR_DB_PASSWORD", "from-env")
	t.Setenv("MPR_CAPTURE_DEVICE", "/dev/video2")

	path := writeConfig(t, `
server:
  port: 8080
database:
  host: localhost
  name: mpr
  user: mpr
  password: from-file
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "/dev/video2", cfg.Capture.Device)
}

func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, Name: "mpr", User: "app", Password: "pw",
	}
	assert.Equal(t, "postgres://app:pw@db:5432/mpr?sslmode=disable", cfg.DSN())
}
