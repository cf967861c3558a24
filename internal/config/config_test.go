package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./tritensor_data", cfg.Storage.Path)
	assert.Equal(t, int64(64), cfg.Storage.TermCacheMB)
	assert.Equal(t, "localhost:9080", cfg.Server.Address)
	assert.Equal(t, 180*time.Second, cfg.Server.Timeout)
	assert.Equal(t, runtime.NumCPU(), cfg.Server.Threads)
	assert.Equal(t, 1000, cfg.Server.QueryCacheSize)
	assert.Zero(t, cfg.Server.UpdateRate)
	assert.Equal(t, uint32(1_000_000), cfg.Loader.BulkSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tritensor.toml"), []byte(`
[storage]
in_memory = true

[server]
address = "0.0.0.0:8080"
timeout = "5s"
update_rate = 2.5

[loader]
bulk_size = 500
`), 0o644))
	t.Setenv("TRITENSOR_SERVER_THREADS", "3")
	t.Setenv("TRITENSOR_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 2.5, cfg.Server.UpdateRate)
	assert.Equal(t, 3, cfg.Server.Threads)
	assert.Equal(t, uint32(500), cfg.Loader.BulkSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"no path":        func(c *Config) { c.Storage.Path = "" },
		"negative cache": func(c *Config) { c.Storage.TermCacheMB = -1 },
		"no threads":     func(c *Config) { c.Server.Threads = 0 },
		"negative rate":  func(c *Config) { c.Server.UpdateRate = -1 },
		"zero bulk size": func(c *Config) { c.Loader.BulkSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := *base
	c.Storage.Path = ""
	c.Storage.InMemory = true
	assert.NoError(t, c.Validate())
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir for toolchains that predate it.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
