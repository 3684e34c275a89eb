package models

import (
	"errors"
	"fmt"
	"time"
)

// OperationType тип офлайн-мутации
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// ErrInvalidOperation is returned when an operation cannot be applied to a payload.
var ErrInvalidOperation = errors.New("invalid operation")

// QueuedOperation представляет долговечную запись одной локальной мутации.
// Живёт в локальной очереди, пока push с ней не будет принят удалённым хранилищем.
type QueuedOperation struct {
	EnqueuedAt     time.Time     `json:"enqueuedAt"`     // EnqueuedAt время постановки в очередь
	Data           any           `json:"data"`           // Data JSON-нормализованные данные мутации
	ID             string        `json:"id"`             // ID уникальный идентификатор операции (UUID)
	Type           OperationType `json:"type"`           // Type create/update/delete
	TargetFragment string        `json:"targetFragment"` // TargetFragment фрагмент, который затрагивает операция
	EntityID       string        `json:"entityId,omitempty"`
	LastError      string        `json:"lastError,omitempty"`
	Seq            uint64        `json:"seq"`        // Seq порядковый номер в очереди (назначается хранилищем)
	RetryCount     int           `json:"retryCount"` // RetryCount количество неудачных попыток push
}

// Validate checks the operation is well formed.
func (op *QueuedOperation) Validate() error {
	if op.TargetFragment == "" {
		return fmt.Errorf("%w: empty target fragment", ErrInvalidOperation)
	}

	switch op.Type {
	case OperationCreate, OperationUpdate, OperationDelete:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}

	if op.EntityID != "" && op.Type != OperationDelete {
		if _, ok := op.Data.(map[string]any); !ok {
			return fmt.Errorf("%w: entity data must be a record", ErrInvalidOperation)
		}
	}

	return nil
}

// CoalescesWith reports whether next may be folded into op without breaking
// per-fragment ordering: same target, same entity, and neither is a delete.
func (op *QueuedOperation) CoalescesWith(next *QueuedOperation) bool {
	if op.TargetFragment != next.TargetFragment || op.EntityID != next.EntityID {
		return false
	}
	return op.Type != OperationDelete && next.Type != OperationDelete
}

// Absorb folds a fresher mutation into op.
func (op *QueuedOperation) Absorb(next *QueuedOperation) {
	prev, prevIsRecord := op.Data.(map[string]any)
	upd, updIsRecord := next.Data.(map[string]any)

	if next.Type == OperationUpdate && prevIsRecord && updIsRecord {
		merged := CloneValue(prev).(map[string]any)
		for k, v := range upd {
			merged[k] = CloneValue(v)
		}
		op.Data = merged
	} else {
		op.Data = CloneValue(next.Data)
		// create поверх чего угодно остаётся create
		if next.Type == OperationCreate {
			op.Type = OperationCreate
		}
	}

	op.EnqueuedAt = next.EnqueuedAt
	op.RetryCount = 0
	op.LastError = ""
}

// Apply воспроизводит эффект операции на payload (изменяя его на месте).
// Операция идемпотентна: повторное применение даёт тот же результат,
// записи коллекций не дублируются.
func (op *QueuedOperation) Apply(payload map[string]any) error {
	if err := op.Validate(); err != nil {
		return err
	}

	if op.EntityID != "" {
		return op.applyToCollection(payload)
	}

	switch op.Type {
	case OperationDelete:
		delete(payload, op.TargetFragment)
	case OperationCreate:
		payload[op.TargetFragment] = CloneValue(op.Data)
	case OperationUpdate:
		existing, existingIsRecord := payload[op.TargetFragment].(map[string]any)
		upd, updIsRecord := op.Data.(map[string]any)
		if existingIsRecord && updIsRecord {
			merged := CloneValue(existing).(map[string]any)
			for k, v := range upd {
				merged[k] = CloneValue(v)
			}
			payload[op.TargetFragment] = merged
			return nil
		}
		payload[op.TargetFragment] = CloneValue(op.Data)
	}

	return nil
}

func (op *QueuedOperation) applyToCollection(payload map[string]any) error {
	var list []any
	if raw, ok := payload[op.TargetFragment]; ok && raw != nil {
		l, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("%w: fragment %q is not a collection", ErrInvalidOperation, op.TargetFragment)
		}
		list = l
	}

	idx := -1
	for i, item := range list {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := EntityKey(record); ok && id == op.EntityID {
			idx = i
			break
		}
	}

	if op.Type == OperationDelete {
		if idx >= 0 {
			out := make([]any, 0, len(list)-1)
			out = append(out, list[:idx]...)
			out = append(out, list[idx+1:]...)
			payload[op.TargetFragment] = out
		}
		return nil
	}

	record := CloneValue(op.Data).(map[string]any)

	out := make([]any, len(list))
	copy(out, list)

	switch {
	case idx < 0:
		if _, ok := record[FieldID]; !ok {
			record[FieldID] = op.EntityID
		}
		out = append(out, record)
	case op.Type == OperationUpdate:
		merged := CloneValue(out[idx]).(map[string]any)
		for k, v := range record {
			if k == FieldID {
				continue
			}
			merged[k] = v
		}
		out[idx] = merged
	default:
		// id существующей записи сохраняется как есть
		record[FieldID] = out[idx].(map[string]any)[FieldID]
		out[idx] = record
	}

	payload[op.TargetFragment] = out
	return nil
}
