package sync

import (
	"time"

	"github.com/iudanet/statesync/internal/models"
)

// Status - то, что координатор показывает приложению
type Status struct {
	LastSyncedAt          time.Time               `json:"lastSyncedAt"`
	LastError             string                  `json:"lastError,omitempty"`
	State                 models.SyncState        `json:"state"`
	Conflicts             []models.ConflictRecord `json:"conflicts"` // самые свежие первыми
	PendingOperationCount int                     `json:"pendingOperationCount"`
	DeadLetterCount       int                     `json:"deadLetterCount"`
	Version               int64                   `json:"version"`
	NextRetryIn           time.Duration           `json:"nextRetryIn,omitempty"`
}

func (s Status) clone() Status {
	if s.Conflicts != nil {
		conflicts := make([]models.ConflictRecord, len(s.Conflicts))
		for i, c := range s.Conflicts {
			conflicts[i] = c.Clone()
		}
		s.Conflicts = conflicts
	}
	return s
}

// EventType тип события координатора
type EventType string

const (
	EventStatusChanged      EventType = "status-changed"
	EventPermanentFailure   EventType = "permanent-failure"
	EventConflictUnresolved EventType = "conflict-unresolved"
	EventCaptureFailed      EventType = "capture-failed"
	EventConflictsResolved  EventType = "conflicts-resolved"
)

// Event is delivered on Coordinator.Events. Delivery is best effort:
// events are dropped when the consumer falls behind.
type Event struct {
	Err       error
	Type      EventType
	Conflicts []models.ConflictRecord
	Status    Status
}
