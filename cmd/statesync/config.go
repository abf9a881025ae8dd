package main

import (
	"log/slog"
	"os"

	"github.com/vango-dev/statesync/internal/config"
	"github.com/vango-dev/statesync/internal/errors"
)

// loadConfig loads .env files, the config file and environment overrides,
// then validates. A missing config file falls back to defaults unless a
// path was given explicitly.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	if err := config.LoadEnv(flags.envFiles...); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
		if errors.HasCode(err, "S101") {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// findConsumer returns the named consumer from the config.
func findConsumer(cfg *config.Config, name string) (config.ConsumerConfig, bool) {
	for _, c := range cfg.Consumers {
		if c.Name == name {
			return c, true
		}
	}
	return config.ConsumerConfig{}, false
}
