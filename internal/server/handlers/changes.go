package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/statesync/internal/server/auth"
	"github.com/iudanet/statesync/internal/server/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ChangesHandler держит websocket-подписки на изменения снапшота аккаунта
type ChangesHandler struct {
	logger   *slog.Logger
	notifier notify.Notifier
	upgrader websocket.Upgrader
	done     chan struct{}
	once     sync.Once
}

// NewChangesHandler creates a new changes handler
func NewChangesHandler(logger *slog.Logger, notifier notify.Notifier) *ChangesHandler {
	return &ChangesHandler{
		logger:   logger,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Close завершает все открытые подписки. http.Server.Shutdown не закрывает
// hijacked соединения, поэтому сервер вызывает Close при остановке.
func (h *ChangesHandler) Close() {
	h.once.Do(func() {
		close(h.done)
	})
}

// Changes обрабатывает GET /api/v1/snapshot/changes (websocket).
// Каждое событие - JSON api.ChangeEvent с новой версией.
func (h *ChangesHandler) Changes(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountID(r.Context())
	if !ok {
		h.logger.Error("Account ID not found in context")
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("Websocket upgrade failed", "error", err, "account_id", accountID)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.notifier.Subscribe(accountID)
	defer unsubscribe()

	h.logger.Debug("Change subscriber connected", "account_id", accountID)

	// Читаем входящие кадры только ради pong и обнаружения закрытия
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debug("Change subscriber disconnected", "account_id", accountID)
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("Failed to write change event", "error", err, "account_id", accountID)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
