package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("db", "leitner.db", "")
	fs.String("log-level", "info", "")
	fs.String("addr", ":8080", "")
	fs.String("source-owner", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leitner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "leitner.db", cfg.DB)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "main", cfg.Source.Branch)
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, `
db: file.db
log_level: warn
source:
  owner: file-owner
  repo: decks
  path: docs/
`)
	t.Setenv("LEITNER_LOG_LEVEL", "debug")
	t.Setenv("LEITNER_SOURCE__REPO", "env-decks")

	cfg, err := Load(path, testFlags(t, "--db", "flag.db"))
	require.NoError(t, err)

	assert.Equal(t, "flag.db", cfg.DB, "flags beat the file")
	assert.Equal(t, "debug", cfg.LogLevel, "env beats the file")
	assert.Equal(t, "file-owner", cfg.Source.Owner, "unset flags do not override")
	assert.Equal(t, "env-decks", cfg.Source.Repo)
	assert.Equal(t, "docs/", cfg.Source.Path)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestLoadSourceFlag(t *testing.T) {
	cfg, err := Load("", testFlags(t, "--source-owner", "me", "--log-level", "error"))
	require.NoError(t, err)
	assert.Equal(t, "me", cfg.Source.Owner)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load config file")
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("LEITNER_ENV", "staging")
		_, err := Load("", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Tag: oneof")
	})

	t.Run("empty branch", func(t *testing.T) {
		path := writeFile(t, "source:\n  branch: \"\"\n")
		_, err := Load(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Field: Branch")
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "source.owner", envKey("LEITNER_SOURCE__OWNER"))
	assert.Equal(t, "log_level", envKey("LEITNER_LOG_LEVEL"))
	assert.Equal(t, "log_level", flagKey("log-level"))
	assert.Equal(t, "source.branch", flagKey("source-branch"))
}
