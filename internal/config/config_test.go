package config

import (
	"os"
	"testing"
)

func clearPrismEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PRISM_MODEL", "PRISM_LOG_LEVEL", "PRISM_LOG_FORMAT",
		"PRISM_REGISTRY_USER", "PRISM_REGISTRY_PASSWORD", "PRISM_WORKERS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearPrismEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.Model != "" || cfg.Workers != 0 {
		t.Errorf("Model/Workers = %q/%d, want empty defaults", cfg.Model, cfg.Workers)
	}
}

func TestFromEnvReadsValues(t *testing.T) {
	clearPrismEnv(t)
	t.Setenv("PRISM_MODEL", "aiko.zip")
	t.Setenv("PRISM_LOG_LEVEL", "debug")
	t.Setenv("PRISM_LOG_FORMAT", "json")
	t.Setenv("PRISM_REGISTRY_USER", "render")
	t.Setenv("PRISM_REGISTRY_PASSWORD", "hunter2")
	t.Setenv("PRISM_WORKERS", "6")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Model != "aiko.zip" || cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("Model/LogLevel/LogFormat = %q/%q/%q", cfg.Model, cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.RegistryUser != "render" || cfg.RegistryPassword != "hunter2" {
		t.Errorf("registry credentials not read")
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6", cfg.Workers)
	}
}

func TestFromEnvRejectsBadWorkers(t *testing.T) {
	clearPrismEnv(t)
	t.Setenv("PRISM_WORKERS", "many")

	if _, err := FromEnv(); err == nil {
		t.Error("FromEnv succeeded with non-numeric PRISM_WORKERS")
	}
}
