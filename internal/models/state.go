package models

// SyncState состояние координатора синхронизации
type SyncState string

const (
	StateIdle      SyncState = "idle"
	StateSyncing   SyncState = "syncing"
	StateOffline   SyncState = "offline"
	StateConflict  SyncState = "conflict"
	StateRestoring SyncState = "restoring"
)

func (s SyncState) String() string {
	return string(s)
}
