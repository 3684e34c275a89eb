package models

import (
	"fmt"
	"time"
)

// Resolution описывает, как был разрешён конфликт.
type Resolution string

const (
	ResolutionLocalWins       Resolution = "local-wins"       // локальное значение новее
	ResolutionRemoteWins      Resolution = "remote-wins"      // удалённое значение новее
	ResolutionRemotePreferred Resolution = "remote-preferred" // timestamps равны, удалённая сторона авторитетна
)

// ConflictRecord фиксирует расхождение локального и удалённого снапшотов
// на одном и том же фрагменте (сущности, поле). Используется только для диагностики.
type ConflictRecord struct {
	ResolvedAt  time.Time  `json:"resolvedAt"`
	LocalValue  any        `json:"localValue"`
	RemoteValue any        `json:"remoteValue"`
	FragmentKey string     `json:"fragmentKey"`
	EntityID    string     `json:"entityId,omitempty"`
	Field       string     `json:"field,omitempty"`
	Resolution  Resolution `json:"resolution"`
}

// Key returns a stable identity used to deduplicate conflict logs.
func (c ConflictRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", c.FragmentKey, c.EntityID, c.Field, c.Resolution, c.ResolvedAt.UnixNano())
}

// Path returns fragment[/entity][.field] for log output.
func (c ConflictRecord) Path() string {
	path := c.FragmentKey
	if c.EntityID != "" {
		path += "/" + c.EntityID
	}
	if c.Field != "" {
		path += "." + c.Field
	}
	return path
}

// Clone создает глубокую копию записи
func (c ConflictRecord) Clone() ConflictRecord {
	c.LocalValue = CloneValue(c.LocalValue)
	c.RemoteValue = CloneValue(c.RemoteValue)
	return c
}
