package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: postgres
  dsn: postgres://localhost/orpheus
  transactional: false
meta:
  dir: /var/lib/orpheus/meta
home: /data
log_level: debug
user:
  name: alice
  email: alice@example.com
server:
  port: 9000
  jwt_secret: s3cret
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.False(t, cfg.Store.Transactional)
	require.Equal(t, "/var/lib/orpheus/meta", cfg.Meta.Dir)
	require.Equal(t, "/data", cfg.Home)
	require.Equal(t, "alice", cfg.User.Name)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "s3cret", cfg.Server.JWTSecret)
	require.Equal(t, "debug", cfg.Logger().GetLevel().String())
}

func TestLoadRejectsUnknownFieldsAndBadValues(t *testing.T) {
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("stor:\n  driver: sqlite\n"), 0644))
	_, err := Load(unknown)
	require.Error(t, err)

	badDriver := filepath.Join(dir, "driver.yaml")
	require.NoError(t, os.WriteFile(badDriver, []byte("store:\n  driver: oracle\n"), 0644))
	_, err = Load(badDriver)
	require.Error(t, err)

	badLevel := filepath.Join(dir, "level.yaml")
	require.NoError(t, os.WriteFile(badLevel, []byte("log_level: loud\n"), 0644))
	_, err = Load(badLevel)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Home = "/srv"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvPath, "")
	require.Equal(t, DefaultPath, Path(""))

	t.Setenv(EnvPath, "/etc/orpheus.yaml")
	require.Equal(t, "/etc/orpheus.yaml", Path(""))
	require.Equal(t, "x.yaml", Path("x.yaml"))
}
