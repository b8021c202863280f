package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "steamauth.db", cfg.DatabaseFile)
	require.Equal(t, 5*time.Minute, cfg.ClockStaleness)
	require.Equal(t, 2.0, cfg.ConfirmRate)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_file: /tmp/vault.db
clock_staleness: 90s
confirm_rate: 0.5
log_level: debug
`), 0o600))
	t.Setenv("STEAMAUTH_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/vault.db", cfg.DatabaseFile)
	require.Equal(t, 90*time.Second, cfg.ClockStaleness)
	require.Equal(t, 0.5, cfg.ConfirmRate)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_file: /tmp/from-file.db\n"), 0o600))
	t.Setenv("STEAMAUTH_CONFIG", path)
	t.Setenv("STEAMAUTH_DATABASE_FILE", "/tmp/from-env.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env.db", cfg.DatabaseFile)
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clock_staleness: [nonsense\n"), 0o600))
	t.Setenv("STEAMAUTH_CONFIG", path)

	_, err := LoadConfig()
	require.Error(t, err)
}
