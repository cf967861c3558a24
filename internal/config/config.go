// Package config loads tritensor settings from defaults, an optional
// tritensor.toml and TRITENSOR_* environment variables.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Config is the complete tritensor configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig locates the tensor's badger database
type StorageConfig struct {
	Path        string `mapstructure:"path"`
	InMemory    bool   `mapstructure:"in_memory"`
	SyncWrites  bool   `mapstructure:"sync_writes"`
	TermCacheMB int64  `mapstructure:"term_cache_mb"`
}

// ServerConfig configures the SPARQL endpoint
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Threads        int           `mapstructure:"threads"`
	QueryCacheSize int           `mapstructure:"query_cache_size"`
	UpdateRate     float64       `mapstructure:"update_rate"` // updates per second, 0 = unlimited
}

// LoaderConfig configures bulk loading
type LoaderConfig struct {
	BulkSize uint32 `mapstructure:"bulk_size"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return errors.WithHint(errors.New("storage.path is empty"),
			"set storage.path or enable storage.in_memory")
	}
	if c.Storage.TermCacheMB < 0 {
		return errors.Newf("storage.term_cache_mb must not be negative, got %d", c.Storage.TermCacheMB)
	}
	if c.Server.Timeout < 0 {
		return errors.Newf("server.timeout must not be negative, got %s", c.Server.Timeout)
	}
	if c.Server.Threads < 1 {
		return errors.Newf("server.threads must be at least 1, got %d", c.Server.Threads)
	}
	if c.Server.QueryCacheSize < 0 {
		return errors.Newf("server.query_cache_size must not be negative, got %d", c.Server.QueryCacheSize)
	}
	if c.Server.UpdateRate < 0 {
		return errors.Newf("server.update_rate must not be negative, got %g", c.Server.UpdateRate)
	}
	if c.Loader.BulkSize == 0 {
		return errors.New("loader.bulk_size must be positive")
	}
	return nil
}
