// Package config loads tool settings for the gitdock CLI. Values come
// from defaults, then an optional config file, then GITDOCK_* environment
// variables, later sources winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// WatchDelay is the quiet period the file watcher waits before
	// reporting a burst of changes.
	WatchDelay time.Duration `mapstructure:"watch_delay"`
	// BlobCacheSize caps the discard-history blob store's in-memory LRU.
	BlobCacheSize int `mapstructure:"blob_cache_size"`
	// RecentCommits is the default length of the commit log listing.
	RecentCommits int `mapstructure:"recent_commits"`
}

// Load reads the configuration. With an explicit path the file must
// exist; with an empty path gitdock.yaml is searched for in the current
// directory and ~/.config/gitdock, and its absence is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gitdock")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "gitdock"))
		}
	}

	v.SetEnvPrefix("GITDOCK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file anywhere; defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("watch_delay", "200ms")
	v.SetDefault("blob_cache_size", 256)
	v.SetDefault("recent_commits", 20)
}
