package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainstate/internal/blob"
	"chainstate/pkg/chainerr"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CHAINSTATE_LISTEN", "CHAINSTATE_AUTOSAVE_ENABLED", "CHAINSTATE_AUTOSAVE_DELAY", "CHAINSTATE_LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Autosave.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Autosave.Delay())
	assert.Equal(t, "127.0.0.1:7545", cfg.Listen)
	assert.Equal(t, blob.DriverFilesystem, cfg.Blob.Driver)
	assert.Equal(t, "./.chainstate", cfg.Blob.Root)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	clearEnv(t)
	path := write(t, "chainstate.yaml", `
autosave:
  delay_seconds: 2.5
blob:
  driver: sqlite
  path: /tmp/state.db
compiler:
  roots: [contracts]
  debounce_ms: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Autosave.Enabled, "unset keys keep their defaults")
	assert.Equal(t, 2500*time.Millisecond, cfg.Autosave.Delay())
	assert.Equal(t, blob.DriverSQLite, cfg.Blob.Driver)
	assert.Equal(t, "/tmp/state.db", cfg.Blob.Path)
	assert.Equal(t, []string{"contracts"}, cfg.Compiler.Watcher().Roots)
	assert.Equal(t, 250*time.Millisecond, cfg.Compiler.Watcher().Debounce)
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := write(t, "chainstate.toml", `
listen = "0.0.0.0:9000"

[autosave]
enabled = false

[log]
format = "json"

[blob.s3]
bucket = "snapshots"
path_style = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.False(t, cfg.Autosave.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "snapshots", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAINSTATE_AUTOSAVE_ENABLED", "false")
	t.Setenv("CHAINSTATE_AUTOSAVE_DELAY", "1")
	t.Setenv("CHAINSTATE_LISTEN", ":1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Autosave.Enabled)
	assert.Equal(t, time.Second, cfg.Autosave.Delay())
	assert.Equal(t, ":1", cfg.Listen)

	t.Setenv("CHAINSTATE_AUTOSAVE_DELAY", "soon")
	_, err = Load("")
	assert.True(t, chainerr.Is(err, chainerr.CodeInvalidInput))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero delay":   func(c *Config) { c.Autosave.DelaySeconds = 0 },
		"no listen":    func(c *Config) { c.Listen = " " },
		"bad driver":   func(c *Config) { c.Blob.Driver = "tape" },
		"bad format":   func(c *Config) { c.Log.Format = "xml" },
		"bad debounce": func(c *Config) { c.Compiler.DebounceMS = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.True(t, chainerr.Is(cfg.Validate(), chainerr.CodeInvalidInput))
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	clearEnv(t)
	_, err := Load(write(t, "chainstate.ini", "x=1"))
	assert.True(t, chainerr.Is(err, chainerr.CodeInvalidInput))
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	want := filepath.Join(root, "chainstate.toml")
	require.NoError(t, os.WriteFile(want, []byte(""), 0o644))

	got, err := FindConfigFile(nested)
	require.NoError(t, err)
	wantResolved, _ := filepath.EvalSymlinks(want)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, wantResolved, gotResolved)
}
