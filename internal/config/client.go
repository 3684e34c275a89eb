package config

import (
	"errors"
	"fmt"
	"net/url"

	clientsync "github.com/iudanet/statesync/internal/client/sync"
	"github.com/iudanet/statesync/internal/validation"
)

// ClientConfig конфигурация клиента (демона синхронизации и CLI)
type ClientConfig struct {
	ServerURL    string            `yaml:"server_url"`
	Token        string            `yaml:"token"`
	DBPath       string            `yaml:"db_path"`
	StateDir     string            `yaml:"state_dir"` // каталог файлов фрагментов
	LogLevel     string            `yaml:"log_level"`
	Fragments    []string          `yaml:"fragments"`
	Sync         clientsync.Config `yaml:"sync"`
	RetryCeiling int               `yaml:"retry_ceiling"`
	Encrypt      bool              `yaml:"encrypt"`
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:    "http://localhost:8080",
		DBPath:       "statesync-client.db",
		StateDir:     "state",
		LogLevel:     "info",
		Fragments:    []string{"pet", "inventory", "coins", "streak", "quests"},
		Sync:         clientsync.DefaultConfig(),
		RetryCeiling: 5,
	}
}

// LoadClient загружает конфигурацию клиента. path может быть пустым.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	e := &env{}
	e.string("SERVER_URL", &cfg.ServerURL)
	e.string("TOKEN", &cfg.Token)
	e.string("CLIENT_DB", &cfg.DBPath)
	e.string("STATE_DIR", &cfg.StateDir)
	e.string("LOG_LEVEL", &cfg.LogLevel)
	e.int("RETRY_CEILING", &cfg.RetryCeiling)
	e.bool("ENCRYPT", &cfg.Encrypt)
	e.duration("DEBOUNCE", &cfg.Sync.DebounceDelay)
	e.duration("BACKOFF_BASE", &cfg.Sync.Backoff.Base)
	e.duration("BACKOFF_MAX", &cfg.Sync.Backoff.Max)
	e.int("MAX_CONFLICT_RETRIES", &cfg.Sync.MaxConflictRetries)
	if err := e.err(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет конфигурацию клиента
func (c *ClientConfig) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url must be an http(s) URL, got %q", c.ServerURL))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if len(c.Fragments) == 0 {
		errs = append(errs, errors.New("at least one fragment is required"))
	}
	seen := make(map[string]bool, len(c.Fragments))
	for _, name := range c.Fragments {
		if err := validation.ValidateFragmentName(name); err != nil {
			errs = append(errs, err)
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("fragment %q listed twice", name))
		}
		seen[name] = true
	}
	if c.RetryCeiling <= 0 {
		errs = append(errs, errors.New("retry_ceiling must be positive"))
	}
	if c.Sync.DebounceDelay < 0 {
		errs = append(errs, errors.New("sync.debounce must not be negative"))
	}
	if c.Sync.MaxConflictRetries < 0 {
		errs = append(errs, errors.New("sync.max_conflict_retries must not be negative"))
	}
	if b := c.Sync.Backoff; b.Max > 0 && b.Base > b.Max {
		errs = append(errs, errors.New("sync.backoff.base must not exceed sync.backoff.max"))
	}
	if b := c.Sync.Backoff; b.JitterPercent > 100 {
		errs = append(errs, errors.New("sync.backoff.jitter_percent must be within 0..100"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid client config: %w", errors.Join(errs...))
	}
	return nil
}
