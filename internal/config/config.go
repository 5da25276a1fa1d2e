// Package config loads the engine's runtime configuration, following
// the viper wiring shape used by steveyegge-beads and
// untoldecay-BeadsLog: a config file, an environment-variable prefix,
// and explicit flag binding, merged by viper's own precedence rules
// (flags > env > file > defaults).
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EngineConfig is the subset of flowtable.Config that is meaningful to
// load from a file/environment/flags, plus operational knobs that sit
// outside the engine proper (debug logging, metrics listen address).
type EngineConfig struct {
	MaxEntries        int     `mapstructure:"max_entries"`
	LoadFactor        float64 `mapstructure:"load_factor"`
	Debug             bool    `mapstructure:"debug"`
	MetricsListenAddr string  `mapstructure:"metrics_listen_addr"`
}

const envPrefix = "FLOWTABLE"

// Defaults is the configuration used when no file, environment
// variable, or flag overrides a field.
func Defaults() EngineConfig {
	return EngineConfig{
		MaxEntries:        1024,
		LoadFactor:        0.8,
		Debug:             false,
		MetricsListenAddr: ":9600",
	}
}

// Load builds a viper instance bound to configName (searched for in
// the given search paths, without extension) and to flags, and
// decodes it into an EngineConfig seeded with Defaults().
func Load(configName string, searchPaths []string, flags *pflag.FlagSet) (EngineConfig, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("max_entries", d.MaxEntries)
	v.SetDefault("load_factor", d.LoadFactor)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("metrics_listen_addr", d.MetricsListenAddr)

	v.SetConfigName(configName)
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return EngineConfig{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return EngineConfig{}, err
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, err
	}

	return cfg, nil
}
