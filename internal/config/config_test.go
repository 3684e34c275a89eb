package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noDotEnv(t *testing.T) {
	t.Helper()
	prev := DotEnvFile
	DotEnvFile = ""
	t.Cleanup(func() { DotEnvFile = prev })
}

func TestLoadServer_Defaults(t *testing.T) {
	noDotEnv(t)
	t.Setenv("STATESYNC_JWT_SECRET", "0123456789abcdef")

	cfg, err := LoadServer("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "statesync-server.db", cfg.DBPath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
}

func TestLoadServer_FileThenEnv(t *testing.T) {
	noDotEnv(t)
	path := writeFile(t, "server.yaml", `
addr: ":9090"
jwt_secret: "from-file-secret-value"
token_ttl: 1h
redis_url: "redis://localhost:6379/0"
`)
	t.Setenv("STATESYNC_ADDR", ":7070")
	t.Setenv("STATESYNC_RATE_WINDOW", "30s")

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr, "env overrides file")
	assert.Equal(t, "from-file-secret-value", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
}

func TestLoadServer_Invalid(t *testing.T) {
	noDotEnv(t)

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("STATESYNC_JWT_SECRET", "short")
		_, err := LoadServer("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt_secret")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("STATESYNC_JWT_SECRET", "0123456789abcdef")
		t.Setenv("STATESYNC_TOKEN_TTL", "forever")
		_, err := LoadServer("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STATESYNC_TOKEN_TTL")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadServer(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadServer_DotEnv(t *testing.T) {
	path := writeFile(t, ".env", "STATESYNC_JWT_SECRET=dotenv-secret-0123\n")
	prev := DotEnvFile
	DotEnvFile = path
	t.Cleanup(func() {
		DotEnvFile = prev
		os.Unsetenv("STATESYNC_JWT_SECRET")
	})

	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret-0123", cfg.JWTSecret)
}

func TestLoadClient(t *testing.T) {
	noDotEnv(t)
	path := writeFile(t, "client.yaml", `
server_url: "https://sync.example.com"
fragments: [pet, coins]
sync:
  debounce: 500ms
  max_conflict_retries: 5
  backoff:
    base: 2s
    max: 1m
    jitter_percent: 20
`)
	t.Setenv("STATESYNC_RETRY_CEILING", "7")
	t.Setenv("STATESYNC_ENCRYPT", "true")

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.ServerURL)
	assert.Equal(t, []string{"pet", "coins"}, cfg.Fragments)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.DebounceDelay)
	assert.Equal(t, 5, cfg.Sync.MaxConflictRetries)
	assert.Equal(t, 2*time.Second, cfg.Sync.Backoff.Base)
	assert.Equal(t, time.Minute, cfg.Sync.Backoff.Max)
	assert.Equal(t, uint64(20), cfg.Sync.Backoff.JitterPercent)
	// не указанные в файле значения остаются по умолчанию
	assert.Equal(t, 50, cfg.Sync.ConflictHistory)
	assert.Equal(t, 7, cfg.RetryCeiling)
	assert.True(t, cfg.Encrypt)
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		mutate func(c *ClientConfig)
		name   string
	}{
		{name: "bad url", mutate: func(c *ClientConfig) { c.ServerURL = "ftp://host" }},
		{name: "no db", mutate: func(c *ClientConfig) { c.DBPath = "" }},
		{name: "no fragments", mutate: func(c *ClientConfig) { c.Fragments = nil }},
		{name: "zero ceiling", mutate: func(c *ClientConfig) { c.RetryCeiling = 0 }},
		{name: "base above max", mutate: func(c *ClientConfig) { c.Sync.Backoff.Base = time.Hour }},
		{name: "bad level", mutate: func(c *ClientConfig) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			require.NoError(t, cfg.Validate())

			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
