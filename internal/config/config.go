package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/edflow/edflow/internal/burden"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	FacilityCacheTTL   time.Duration `mapstructure:"FACILITY_CACHE_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MonitorInterval    time.Duration `mapstructure:"MONITOR_INTERVAL"`
	MonitorConcurrency int           `mapstructure:"MONITOR_CONCURRENCY"`
	CalibrationFile    string        `mapstructure:"CALIBRATION_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("FACILITY_CACHE_TTL", "5m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("MONITOR_INTERVAL", "30s")
	v.SetDefault("MONITOR_CONCURRENCY", 8)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "FACILITY_CACHE_TTL", "CORS_ORIGINS", "REQUEST_TIMEOUT",
		"MONITOR_INTERVAL", "MONITOR_CONCURRENCY", "CALIBRATION_FILE",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasDatabase reports whether a Postgres facility directory is configured.
// Without one the server keeps facilities in memory.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate checks that the configuration is safe to run. Production requires
// a database so facility data survives restarts.
func (c *Config) Validate() error {
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.FacilityCacheTTL <= 0 {
		return fmt.Errorf("FACILITY_CACHE_TTL must be positive, got %s", c.FacilityCacheTTL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %s", c.MonitorInterval)
	}
	if c.MonitorConcurrency < 1 {
		return fmt.Errorf("MONITOR_CONCURRENCY must be at least 1, got %d", c.MonitorConcurrency)
	}
	return nil
}

// LoadCalibration returns the model calibration table. Values in the YAML or
// JSON file at path override the shipped defaults key by key; an empty path
// yields the defaults unchanged.
func LoadCalibration(path string) (burden.Calibration, error) {
	cal := burden.DefaultCalibration()
	if path == "" {
		return cal, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return burden.Calibration{}, fmt.Errorf("read calibration %s: %w", path, err)
	}
	if err := v.Unmarshal(&cal); err != nil {
		return burden.Calibration{}, fmt.Errorf("decode calibration %s: %w", path, err)
	}
	if err := cal.Validate(); err != nil {
		return burden.Calibration{}, fmt.Errorf("calibration %s: %w", path, err)
	}
	return cal, nil
}
