package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/statesync/internal/server/auth"
	"github.com/iudanet/statesync/internal/server/notify"
	"github.com/iudanet/statesync/pkg/api"
)

func TestChangesHandler_StreamsEvents(t *testing.T) {
	hub := notify.NewHub(setupTestLogger())
	handler := NewChangesHandler(setupTestLogger(), hub)
	defer handler.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Changes(w, r.WithContext(auth.WithAccountID(r.Context(), "account-1")))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("account-1") == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), "account-1", api.ChangeEvent{DeviceID: "device-2", Version: 7}))
	require.NoError(t, hub.Publish(context.Background(), "account-2", api.ChangeEvent{Version: 99}))
	require.NoError(t, hub.Publish(context.Background(), "account-1", api.ChangeEvent{Version: 8}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first, second api.ChangeEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, api.ChangeEvent{DeviceID: "device-2", Version: 7}, first)
	assert.Equal(t, int64(8), second.Version)

	// Закрытие клиентом снимает подписку
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("account-1") == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestChangesHandler_CloseEndsSubscriptions(t *testing.T) {
	hub := notify.NewHub(setupTestLogger())
	handler := NewChangesHandler(setupTestLogger(), hub)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Changes(w, r.WithContext(auth.WithAccountID(r.Context(), "account-1")))
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.SubscriberCount("account-1") == 1
	}, 5*time.Second, 10*time.Millisecond)

	handler.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestChangesHandler_Unauthorized(t *testing.T) {
	handler := NewChangesHandler(setupTestLogger(), notify.NewHub(setupTestLogger()))
	defer handler.Close()

	w := httptest.NewRecorder()
	handler.Changes(w, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/changes", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
