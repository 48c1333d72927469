package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "APP_LOG_LEVEL",
		"ENGINE_TOLERANCE_PERCENT", "ENGINE_SEED", "ENGINE_TIMEOUT",
		"METRICS_ENABLED", "METRICS_PATH",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.App.Name != "roster" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "roster")
	}
	if cfg.Engine.TolerancePercent != 8 {
		t.Errorf("Engine.TolerancePercent = %v, want 8", cfg.Engine.TolerancePercent)
	}
	if cfg.Engine.Seed != 42 {
		t.Errorf("Engine.Seed = %v, want 42", cfg.Engine.Seed)
	}
	if cfg.Engine.DefaultTimeout != 30*time.Second {
		t.Errorf("Engine.DefaultTimeout = %v, want 30s", cfg.Engine.DefaultTimeout)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics to default to enabled")
	}
	if !cfg.IsDevelopment() {
		t.Error("expected default environment to be development")
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	os.Setenv("APP_ENV", "production")
	os.Setenv("ENGINE_TOLERANCE_PERCENT", "5.5")
	os.Setenv("ENGINE_SEED", "7")
	defer func() {
		os.Unsetenv("APP_ENV")
		os.Unsetenv("ENGINE_TOLERANCE_PERCENT")
		os.Unsetenv("ENGINE_SEED")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected APP_ENV=production to be reflected")
	}
	if cfg.Engine.TolerancePercent != 5.5 {
		t.Errorf("Engine.TolerancePercent = %v, want 5.5", cfg.Engine.TolerancePercent)
	}
	if cfg.Engine.Seed != 7 {
		t.Errorf("Engine.Seed = %v, want 7", cfg.Engine.Seed)
	}
}
