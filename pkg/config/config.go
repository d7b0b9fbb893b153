package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application-wide configuration for the standalone mock server.
type Config struct {
	Serve   ServeConfig   `mapstructure:"serve"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServeConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
	// Seed is a path to a JSON file mapping "schema.table" to row arrays,
	// loaded into the store at startup.
	Seed     string `mapstructure:"seed"`
	LogLevel string `mapstructure:"logLevel"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listenAddr"`
}

func DefaultConfig() Config {
	return Config{
		Serve: ServeConfig{
			ListenAddr: ":54321",
			LogLevel:   "info",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9100",
		},
	}
}

// Load reads config from file or environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pgrestmock")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PGRESTMOCK")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", v.ConfigFileUsed())
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
