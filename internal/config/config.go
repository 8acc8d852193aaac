// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "CODESHEET"
	defaultHTTPAddress  = "0.0.0.0:12212"
	defaultCachePath    = "codesheet_cache.json"
	defaultLogLevel     = "info"
	defaultHistoryLimit = 20
	defaultThreshold    = 50
	defaultDebounce     = 2 * time.Second
)

// AppConfig captures runtime configuration for the server.
type AppConfig struct {
	HTTPAddress      string
	CachePath        string
	AutosaveDebounce time.Duration
	HistoryLimit     int
	Threshold        int
	LogLevel         string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.address", defaultHTTPAddress)
	v.SetDefault("cache.path", defaultCachePath)
	v.SetDefault("cache.autosave_debounce", defaultDebounce)
	v.SetDefault("history.limit", defaultHistoryLimit)
	v.SetDefault("generator.threshold", defaultThreshold)
	v.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      v.GetString("http.address"),
		CachePath:        v.GetString("cache.path"),
		AutosaveDebounce: v.GetDuration("cache.autosave_debounce"),
		HistoryLimit:     v.GetInt("history.limit"),
		Threshold:        v.GetInt("generator.threshold"),
		LogLevel:         v.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.CachePath) == "" {
		return fmt.Errorf("cache.path is required")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("generator.threshold must be positive")
	}
	return nil
}
