package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/statesync/internal/client/api"
	"github.com/iudanet/statesync/internal/client/iocli"
	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/client/storage/boltdb"
	"github.com/iudanet/statesync/internal/config"
	"github.com/iudanet/statesync/internal/server"
	"github.com/iudanet/statesync/internal/server/auth"
	"github.com/iudanet/statesync/internal/server/notify"
	"github.com/iudanet/statesync/internal/server/storage/sqlite"
)

// testServer - настоящий сервер синхронизации, который можно "уронить" (503)
type testServer struct {
	url    string
	tokens *auth.Service
	down   atomic.Bool
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "server.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ts := &testServer{tokens: auth.NewService("cli-test-secret-0123", time.Hour)}
	srv := server.New(server.Options{RateLimit: 1000, RateWindow: time.Minute}, store, notify.NewHub(logger), ts.tokens, logger)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ts.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(httpServer.Close)
	ts.url = httpServer.URL

	return ts
}

// device - локальное окружение одного устройства
type device struct {
	dbPath   string
	stateDir string
	token    string
	server   string
}

func newDevice(t *testing.T, ts *testServer, account string) *device {
	t.Helper()
	dir := t.TempDir()
	token, err := ts.tokens.Issue(account, "")
	require.NoError(t, err)
	return &device{
		dbPath:   filepath.Join(dir, "client.db"),
		stateDir: filepath.Join(dir, "state"),
		token:    token,
		server:   ts.url,
	}
}

func (d *device) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	prev := config.DotEnvFile
	config.DotEnvFile = ""
	defer func() { config.DotEnvFile = prev }()

	var out bytes.Buffer
	root := NewRootCommand(New(iocli.New(strings.NewReader(""), &out)), "test")
	root.SetArgs(append([]string{
		"--server", d.server,
		"--db", d.dbPath,
		"--state-dir", d.stateDir,
		"--token", d.token,
		"--log-level", "error",
	}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (d *device) fragment(t *testing.T, name string) any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(d.stateDir, name+".json"))
	require.NoError(t, err)
	var v any
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestCLI_SetPushesAndStatus(t *testing.T) {
	ts := startServer(t)
	d := newDevice(t, ts, "account-1")

	out, err := d.run(t, "set", "coins", "120")
	require.NoError(t, err)
	assert.Contains(t, out, "Synchronized at version 1")
	assert.Equal(t, float64(120), d.fragment(t, "coins"))

	out, err = d.run(t, "set", "inventory", `{"qty":2}`, "--entity", "apple")
	require.NoError(t, err)
	assert.Contains(t, out, "Synchronized at version 2")

	out, err = d.run(t, "status")
	require.NoError(t, err)
	assert.Regexp(t, `Version:\s+2\n`, out)
	assert.Regexp(t, `Pending ops:\s+0\n`, out)
	assert.NotContains(t, out, "Last synced:   never")

	// Сервер видит оба изменения
	remote, err := api.NewClient(ts.url, api.WithToken(d.token)).Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(120), remote.Payload["coins"])
	inventory, ok := remote.Payload["inventory"].([]any)
	require.True(t, ok)
	require.Len(t, inventory, 1)
	assert.Equal(t, "apple", inventory[0].(map[string]any)["id"])
}

func TestCLI_OfflineQueueThenSave(t *testing.T) {
	ts := startServer(t)
	d := newDevice(t, ts, "account-1")

	ts.down.Store(true)

	out, err := d.run(t, "set", "coins", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "1 operation(s) queued")

	out, err = d.run(t, "set", "streak", `{"days":3}`, "--merge")
	require.NoError(t, err)
	assert.Contains(t, out, "2 operation(s) queued")

	out, err = d.run(t, "status")
	require.NoError(t, err)
	assert.Regexp(t, `Pending ops:\s+2\n`, out)
	assert.Regexp(t, `Version:\s+0\n`, out)

	ts.down.Store(false)

	out, err = d.run(t, "save")
	require.NoError(t, err)
	assert.Contains(t, out, "Synchronized at version 1")

	out, err = d.run(t, "status")
	require.NoError(t, err)
	assert.Regexp(t, `Pending ops:\s+0\n`, out)

	remote, err := api.NewClient(ts.url, api.WithToken(d.token)).Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(5), remote.Payload["coins"])
	assert.Equal(t, map[string]any{"days": float64(3)}, remote.Payload["streak"])
}

func TestCLI_RestoreOnNewDevice(t *testing.T) {
	ts := startServer(t)
	first := newDevice(t, ts, "account-1")
	second := newDevice(t, ts, "account-1")

	_, err := first.run(t, "set", "pet", `{"name":"Rex"}`, "--merge")
	require.NoError(t, err)

	out, err := second.run(t, "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored version 1")

	pet, ok := second.fragment(t, "pet").(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Rex", pet["name"])
	assert.Equal(t, float64(100), pet["happiness"], "defaults kept for untouched fields")
}

func TestCLI_ConcurrentDevicesMerge(t *testing.T) {
	ts := startServer(t)
	first := newDevice(t, ts, "account-1")
	second := newDevice(t, ts, "account-1")

	_, err := first.run(t, "set", "inventory", `{"qty":1}`, "--entity", "apple")
	require.NoError(t, err)

	// Второе устройство не видело версию 1 и пушит поверх версии 0
	out, err := second.run(t, "set", "inventory", `{"qty":4}`, "--entity", "pear")
	require.NoError(t, err)
	assert.Contains(t, out, "Synchronized at version 2")

	remote, err := api.NewClient(ts.url, api.WithToken(first.token)).Pull(context.Background())
	require.NoError(t, err)
	inventory, ok := remote.Payload["inventory"].([]any)
	require.True(t, ok)

	ids := make([]string, 0, len(inventory))
	for _, item := range inventory {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	assert.ElementsMatch(t, []string{"apple", "pear"}, ids)
}

func TestCLI_DeadLettersAndRequeue(t *testing.T) {
	ts := startServer(t)
	d := newDevice(t, ts, "account-1")

	out, err := d.run(t, "dead-letters")
	require.NoError(t, err)
	assert.Contains(t, out, "No dead letters")

	out, err = d.run(t, "requeue")
	require.NoError(t, err)
	assert.Contains(t, out, "Requeued 0 operation(s)")

	out, err = d.run(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync state reset")
}

func TestCLI_Errors(t *testing.T) {
	ts := startServer(t)
	d := newDevice(t, ts, "account-1")

	_, err := d.run(t, "set", "unknown", "1")
	assert.ErrorContains(t, err, `unknown fragment "unknown"`)

	_, err = d.run(t, "set", "coins", "{not json")
	assert.ErrorContains(t, err, "invalid JSON")

	_, err = d.run(t, "--server", "ftp://nowhere", "status")
	assert.ErrorContains(t, err, "server_url")
}

func TestCLI_StorageLocked(t *testing.T) {
	ts := startServer(t)
	d := newDevice(t, ts, "account-1")

	held, err := boltdb.New(context.Background(), d.dbPath)
	require.NoError(t, err)
	defer held.Close()

	_, err = d.run(t, "status")
	assert.ErrorIs(t, err, storage.ErrLocked)
}
