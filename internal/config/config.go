// Package config provides environment-driven configuration for the
// roster engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Engine  EngineConfig  `yaml:"engine"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig carries basic process identity.
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// EngineConfig carries the assignment engine's tolerance, timing, and
// optimization knobs.
type EngineConfig struct {
	TolerancePercent          float64       `yaml:"tolerance_percent"`
	EmergencyTolerancePercent float64       `yaml:"emergency_tolerance_percent"`
	CriticalTolerancePercent  float64       `yaml:"critical_tolerance_percent"`
	Phase2TolerancePercent    float64       `yaml:"phase2_tolerance_percent"`
	Seed                      int64         `yaml:"seed"`
	DefaultTimeout            time.Duration `yaml:"default_timeout"`
	MaxIterations             int           `yaml:"max_iterations"`
	OptimizationLevel         int           `yaml:"optimization_level"` // 1=fast, 2=balanced, 3=thorough
}

// MetricsConfig holds the metrics settings read from the environment;
// the engine's output document does not report them.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from environment variables, falling back
// to the stated defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "roster"),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Engine: EngineConfig{
			TolerancePercent:          getEnvFloat("ENGINE_TOLERANCE_PERCENT", 8),
			EmergencyTolerancePercent: getEnvFloat("ENGINE_EMERGENCY_TOLERANCE_PERCENT", 10),
			CriticalTolerancePercent:  getEnvFloat("ENGINE_CRITICAL_TOLERANCE_PERCENT", 15),
			Phase2TolerancePercent:    getEnvFloat("ENGINE_PHASE2_TOLERANCE_PERCENT", 12),
			Seed:                      int64(getEnvInt("ENGINE_SEED", 42)),
			DefaultTimeout:            getEnvDuration("ENGINE_TIMEOUT", 30*time.Second),
			MaxIterations:             getEnvInt("ENGINE_MAX_ITERATIONS", 1000),
			OptimizationLevel:         getEnvInt("ENGINE_OPTIMIZATION_LEVEL", 2),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment reports whether the app environment is development.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction reports whether the app environment is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest reports whether the app environment is test.
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
