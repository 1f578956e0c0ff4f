/*
Package config loads server settings.

SOURCES (highest wins):
  1. Environment variables, prefixed ATTENDANCE_ with dots as underscores
     (ATTENDANCE_SERVER_PORT, ATTENDANCE_DB_PATH, ...)
  2. YAML file given with -config, or ./config.yaml / ./config/config.yaml
  3. Defaults below

A missing config file is not an error; defaults plus environment are enough
to run locally.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // engine.timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

const EnvPrefix = "ATTENDANCE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig points at the SQLite file. ":memory:" keeps everything in
// process and is lost on exit.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type EngineConfig struct {
	// MaxIncidentDays caps the length of a single incident's date range.
	MaxIncidentDays int `mapstructure:"max_incident_days"`
	// Timezone is the IANA zone shift times are expressed in. Check-ins
	// without an explicit date and time are stamped with the clock there.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone. Validate has already rejected unknown zones,
// so the UTC fallback only covers an unvalidated config.
func (c EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c ServerConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Load reads defaults, then the config file, then the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("db.path", "attendance.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.max_incident_days", 366)
	v.SetDefault("engine.timezone", "UTC")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be within 1-65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("invalid config: db.path is required")
	}
	if c.Engine.MaxIncidentDays <= 0 {
		return fmt.Errorf("invalid config: engine.max_incident_days must be positive, got %d", c.Engine.MaxIncidentDays)
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("invalid config: engine.timezone: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
