package api

import (
	"time"

	"github.com/iudanet/statesync/internal/models"
)

// PushRequest тело PUT /api/v1/snapshot.
// Version - последняя версия, которую видел клиент; сервер принимает push,
// только если она совпадает с текущей.
type PushRequest struct {
	LastModified time.Time               `json:"lastModified"`
	Payload      map[string]any          `json:"payload"`
	DeviceID     string                  `json:"deviceId"`
	ConflictLog  []models.ConflictRecord `json:"conflictLog,omitempty"`
	Version      int64                   `json:"version"`
}

// PushResponse ответ 200 на принятый push
type PushResponse struct {
	Version int64 `json:"version"` // новая версия, назначенная сервером
}

// ConflictResponse ответ 409: версия клиента устарела
type ConflictResponse struct {
	Snapshot *models.Snapshot `json:"snapshot"` // текущий снапшот сервера
}

// ChangeEvent уведомление канала изменений (at-least-once, best effort)
type ChangeEvent struct {
	DeviceID string `json:"deviceId,omitempty"` // устройство, сделавшее push
	Version  int64  `json:"version"`
}

// HealthResponse ответ GET /api/v1/health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// NewPushRequest builds a push body from a snapshot.
func NewPushRequest(s *models.Snapshot) PushRequest {
	return PushRequest{
		LastModified: s.LastModified,
		Payload:      s.Payload,
		DeviceID:     s.DeviceID,
		ConflictLog:  s.ConflictLog,
		Version:      s.Version,
	}
}

// Snapshot converts the request back into a snapshot.
func (r PushRequest) Snapshot() *models.Snapshot {
	payload := r.Payload
	if payload == nil {
		payload = make(map[string]any)
	}
	return &models.Snapshot{
		LastModified: r.LastModified,
		Payload:      payload,
		DeviceID:     r.DeviceID,
		ConflictLog:  r.ConflictLog,
		Version:      r.Version,
	}
}
