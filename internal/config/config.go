package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServerAddress   string        `mapstructure:"SERVER_ADDRESS"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	MigrationURL    string        `mapstructure:"MIGRATION_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	CredentialTTL   time.Duration `mapstructure:"CREDENTIAL_TTL"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	AlertsEnabled   bool          `mapstructure:"ALERTS_ENABLED"`
	PersistTimeout  time.Duration `mapstructure:"PERSIST_TIMEOUT"`
	SendBuffer      int           `mapstructure:"SEND_BUFFER"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	DevUsers        string        `mapstructure:"DEV_USERS"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":   ":8080",
	"DATABASE_URL":     "",
	"STORE_DRIVER":     DriverPostgres,
	"MIGRATION_URL":    "",
	"JWT_SECRET":       "",
	"CREDENTIAL_TTL":   2 * time.Minute,
	"SESSION_TTL":      72 * time.Hour,
	"REDIS_ADDR":       "",
	"ALERTS_ENABLED":   false,
	"PERSIST_TIMEOUT":  5 * time.Second,
	"SEND_BUFFER":      32,
	"LOG_LEVEL":        "info",
	"DEV_USERS":        "",
	"SHUTDOWN_TIMEOUT": 10 * time.Second,
}

// Load reads path/.env into the process environment when present, then
// layers path/app.env (optional) under environment variables.
func Load(path string) (Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read app.env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.AlertsEnabled && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when ALERTS_ENABLED is set"))
	}
	if c.CredentialTTL <= 0 || c.SessionTTL <= 0 || c.PersistTimeout <= 0 {
		errs = append(errs, errors.New("durations must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger builds the process JSON logger on w and installs it as the
// slog default.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
