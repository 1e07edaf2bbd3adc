package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/yurifrl/nem12sql/pkg/sqlgen"
)

// Config carries the resolved settings for a run. Values come from, in
// increasing precedence: defaults, config file, NEM12SQL_* environment
// variables, command-line flags.
type Config struct {
	BatchSize  int    `mapstructure:"batch_size"`
	OutputDir  string `mapstructure:"output_dir"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Build resolves configuration. cfgFile may be empty, in which case
// config.yaml in the working directory is used when present. flags may be
// nil for callers without a flag set.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	_ = gotenv.Load() // .env is optional

	v := viper.New()
	v.SetDefault("batch_size", sqlgen.DefaultBatchSize)
	v.SetDefault("output_dir", "")
	v.SetDefault("listen_addr", ":8080")

	v.SetEnvPrefix("NEM12SQL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit or broken
		// one is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		bindings := map[string]string{
			"batch_size":  "batch-size",
			"output_dir":  "output",
			"listen_addr": "listen",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	return &cfg, nil
}
