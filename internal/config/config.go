// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-driven settings. Command-line flags
// override these; environment values override the built-in defaults.
type Config struct {
	// Model is the default model archive path used when a command does
	// not receive one explicitly.
	Model string `env:"PRISM_MODEL"`
	// LogLevel is a logrus level name.
	LogLevel string `env:"PRISM_LOG_LEVEL" envDefault:"info"`
	// LogFormat selects "text" or "json" log output.
	LogFormat string `env:"PRISM_LOG_FORMAT" envDefault:"text"`
	// RegistryUser and RegistryPassword authenticate registry pushes
	// and pulls. Kept out of flags so credentials stay off the process
	// command line.
	RegistryUser     string `env:"PRISM_REGISTRY_USER"`
	RegistryPassword string `env:"PRISM_REGISTRY_PASSWORD"`
	// Workers caps batch render concurrency. Zero means one worker per
	// CPU.
	Workers int `env:"PRISM_WORKERS"`
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %v", err)
	}
	return cfg, nil
}
