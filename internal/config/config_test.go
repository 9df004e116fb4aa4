package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	require.NoError(t, Initialize())

	cfg := Get()
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 1500, cfg.Server.Port)
	assert.Equal(t, "AES128", cfg.Dukpt.BDKKeyType)
	assert.Equal(t, "F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1", cfg.Keys.CardBDK)
	assert.Equal(t, "F2F2F2F2F2F2F2F2F2F2F2F2F2F2F2F2", cfg.Keys.PinBDK)
	assert.Equal(t, "oaep", cfg.Keywrap.Method)
	assert.Equal(t, "kek", cfg.Keywrap.KEKAlias)

	_, err := os.Stat(filepath.Join(home, dirName, "config.yaml"))
	assert.NoError(t, err)
}

func TestInitializeEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("GODUKPT_SERVER_PORT", "1600")
	t.Setenv("GODUKPT_DUKPT_WORKING_KEY_TYPE", "AES256")

	require.NoError(t, Initialize())

	assert.Equal(t, 1600, Get().Server.Port)
	assert.Equal(t, "AES256", Get().Dukpt.WorkingKeyType)
	assert.Equal(t, 1600, GetViper().GetInt("server.port"))
}

func TestInitializeReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	dir := filepath.Join(home, dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
server:
  port: 1700
keys:
  card_bdk: FEDCBA9876543210F1F1F1F1F1F1F1F1
`), 0o600))

	require.NoError(t, Initialize())
	assert.Equal(t, 1700, Get().Server.Port)
	assert.Equal(t, "FEDCBA9876543210F1F1F1F1F1F1F1F1", Get().Keys.CardBDK)
	assert.Equal(t, "localhost", Get().Server.Host)
}

func TestInitializeExplicitFileAndFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1800\nlog:\n  level: warn\n"), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))

	SetConfigFile(path)
	BindFlag("log.level", fs.Lookup("log-level"))
	t.Cleanup(func() {
		SetConfigFile("")
		delete(bindings, "log.level")
	})

	require.NoError(t, Initialize())
	assert.Equal(t, 1800, Get().Server.Port)
	assert.Equal(t, "debug", Get().Log.Level)

	// The explicit file replaces the default location.
	_, err := os.Stat(filepath.Join(home, dirName, "config.yaml"))
	assert.True(t, os.IsNotExist(err))
}
