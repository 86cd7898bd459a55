package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/classpath"
)

// Config is the tool configuration, read from classinfo.yaml, CLASSINFO_*
// environment variables and flags, in increasing priority.
type Config struct {
	ClassPath    []string      `mapstructure:"classpath"`
	Remap        string        `mapstructure:"remap"`
	RemapWasm    string        `mapstructure:"remap_wasm"`
	Format       string        `mapstructure:"format"`
	IdleTTL      time.Duration `mapstructure:"idle_ttl"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	CacheSize    int           `mapstructure:"cache_size"`
	Verbose      bool          `mapstructure:"verbose"`
}

var formats = []string{"text", "json", "cbor"}

// loadConfig merges the config file, environment and flags. configFile may
// be empty to search the working directory.
func loadConfig(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("format", "text")
	v.SetDefault("idle_ttl", classinfo.DefaultIdleTTL)
	v.SetDefault("retry_backoff", time.Duration(0))
	v.SetDefault("cache_size", 1024)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("classinfo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CLASSINFO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, flag := range map[string]string{
		"classpath":     "classpath",
		"remap":         "remap",
		"remap_wasm":    "remap-wasm",
		"format":        "format",
		"idle_ttl":      "idle-ttl",
		"retry_backoff": "retry-backoff",
		"cache_size":    "cache-size",
		"verbose":       "verbose",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	var elems []string
	for _, e := range cfg.ClassPath {
		elems = append(elems, classpath.Split(e)...)
	}
	cfg.ClassPath = elems
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	ok := false
	for _, f := range formats {
		if cfg.Format == f {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("unknown format %q (want one of %s)", cfg.Format, strings.Join(formats, ", "))
	}
	if cfg.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}
