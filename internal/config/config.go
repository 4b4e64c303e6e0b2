package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "ERYXON"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "eryxon-sync.db"
	defaultLogLevel      = "info"
	defaultUpdateWorkers = 8
)

// AppConfig captures runtime configuration for the sync API server.
type AppConfig struct {
	HTTPAddress   string
	SigningSecret string
	DatabasePath  string
	LogLevel      string
	UpdateWorkers int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("sync.update_workers", defaultUpdateWorkers)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		UpdateWorkers: configViper.GetInt("sync.update_workers"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.UpdateWorkers <= 0 {
		return fmt.Errorf("sync.update_workers must be positive")
	}
	return nil
}
