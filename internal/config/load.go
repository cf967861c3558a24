package config

import (
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TRITENSOR_SERVER_ADDRESS
const EnvPrefix = "TRITENSOR"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "./tritensor_data")
	v.SetDefault("storage.in_memory", false)
	v.SetDefault("storage.sync_writes", false)
	v.SetDefault("storage.term_cache_mb", 64)

	v.SetDefault("server.address", "localhost:9080")
	v.SetDefault("server.timeout", "180s")
	v.SetDefault("server.threads", runtime.NumCPU())
	v.SetDefault("server.query_cache_size", 1000)
	v.SetDefault("server.update_rate", 0)

	v.SetDefault("loader.bulk_size", 1_000_000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// NewViper returns a viper instance with defaults, environment binding and,
// when present, the config file. An empty configPath looks for
// tritensor.toml in the working directory; a missing file is not an error
// then.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tritensor")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "reading config %s", configPath)
		}
	}
	return v, nil
}

// Load reads the configuration from defaults, the config file and the
// environment, in increasing precedence
func Load(configPath string) (*Config, error) {
	v, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
