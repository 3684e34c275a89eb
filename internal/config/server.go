package config

import (
	"errors"
	"fmt"
	"time"
)

// ServerConfig конфигурация сервера синхронизации
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	DBPath          string        `yaml:"db_path"`      // sqlite, используется без DatabaseURL
	DatabaseURL     string        `yaml:"database_url"` // postgres
	RedisURL        string        `yaml:"redis_url"`    // пусто - уведомления только внутри процесса
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		LogLevel:        "info",
		DBPath:          "statesync-server.db",
		TokenTTL:        30 * 24 * time.Hour,
		RateLimit:       120,
		RateWindow:      time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadServer загружает конфигурацию сервера. path может быть пустым.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	e := &env{}
	e.string("ADDR", &cfg.Addr)
	e.string("LOG_LEVEL", &cfg.LogLevel)
	e.string("DB_PATH", &cfg.DBPath)
	e.string("DATABASE_URL", &cfg.DatabaseURL)
	e.string("REDIS_URL", &cfg.RedisURL)
	e.string("JWT_SECRET", &cfg.JWTSecret)
	e.duration("TOKEN_TTL", &cfg.TokenTTL)
	e.int("RATE_LIMIT", &cfg.RateLimit)
	e.duration("RATE_WINDOW", &cfg.RateWindow)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	if err := e.err(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет конфигурацию сервера
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("either db_path or database_url is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		errs = append(errs, errors.New("rate_limit and rate_window must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid server config: %w", errors.Join(errs...))
	}
	return nil
}
