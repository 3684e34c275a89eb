package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/internal/server/auth"
	"github.com/iudanet/statesync/internal/server/notify"
	"github.com/iudanet/statesync/internal/server/storage"
	"github.com/iudanet/statesync/pkg/api"
)

//go:generate moq -out snapshot_store_mock.go . SnapshotStore

// SnapshotStore определяет интерфейс хранилища снапшотов для обработчиков
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, accountID string) (*models.Snapshot, error)
	PutSnapshot(ctx context.Context, accountID string, snap *models.Snapshot) (int64, error)
}

// SnapshotHandler обслуживает push и pull снапшота аккаунта
type SnapshotHandler struct {
	logger   *slog.Logger
	storage  SnapshotStore
	notifier notify.Notifier
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(logger *slog.Logger, storage SnapshotStore, notifier notify.Notifier) *SnapshotHandler {
	return &SnapshotHandler{
		logger:   logger,
		storage:  storage,
		notifier: notifier,
	}
}

// Get обрабатывает GET /api/v1/snapshot
// Аккаунт без снапшота получает пустой снапшот версии 0
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountID(r.Context())
	if !ok {
		h.logger.Error("Account ID not found in context")
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	snap, err := h.storage.GetSnapshot(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to get snapshot", "error", err, "account_id", accountID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	h.logger.Debug("Snapshot pulled", "account_id", accountID, "version", snap.Version)
	writeJSON(w, h.logger, http.StatusOK, snap)
}

// Put обрабатывает PUT /api/v1/snapshot.
// Push принимается, только если версия клиента совпадает с текущей (compare-and-swap);
// иначе 409 с текущим снапшотом сервера для слияния на клиенте.
func (h *SnapshotHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := auth.AccountID(ctx)
	if !ok {
		h.logger.Error("Account ID not found in context")
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBody)).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode push request", "error", err, "account_id", accountID)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Payload == nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", "payload is required")
		return
	}
	if req.Version < 0 {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", "version must not be negative")
		return
	}

	version, err := h.storage.PutSnapshot(ctx, accountID, req.Snapshot())
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrVersionConflict):
		h.writeConflict(w, r, accountID, req.Version)
		return
	case errors.Is(err, storage.ErrInvalidVersion):
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	default:
		h.logger.Error("Failed to store snapshot", "error", err, "account_id", accountID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	h.logger.Info("Snapshot pushed",
		"account_id", accountID,
		"device_id", req.DeviceID,
		"version", version)

	// Уведомление - только подсказка, его потеря не отменяет push
	if err := h.notifier.Publish(ctx, accountID, api.ChangeEvent{DeviceID: req.DeviceID, Version: version}); err != nil {
		h.logger.Warn("Failed to publish change event", "error", err, "account_id", accountID)
	}

	writeJSON(w, h.logger, http.StatusOK, api.PushResponse{Version: version})
}

func (h *SnapshotHandler) writeConflict(w http.ResponseWriter, r *http.Request, accountID string, clientVersion int64) {
	current, err := h.storage.GetSnapshot(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to get snapshot for conflict response", "error", err, "account_id", accountID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	h.logger.Info("Push rejected, stale version",
		"account_id", accountID,
		"client_version", clientVersion,
		"version", current.Version)

	writeJSON(w, h.logger, http.StatusConflict, api.ConflictResponse{Snapshot: current})
}
