package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Зарезервированные поля внутри записей фрагментов.
// Остальное содержимое фрагментов синхронизатор не интерпретирует.
const (
	FieldID           = "id"
	FieldLastModified = "lastModified"
)

// Snapshot представляет полную версионированную сериализацию состояния приложения.
// Это единица синхронизации между устройством и удалённым хранилищем.
type Snapshot struct {
	LastModified time.Time        `json:"lastModified"` // LastModified время последней локальной мутации (часы устройства)
	Payload      map[string]any   `json:"payload"`      // Payload именованные фрагменты состояния
	DeviceID     string           `json:"deviceId"`     // DeviceID идентификатор устройства/сессии
	ConflictLog  []ConflictRecord `json:"conflictLog"`  // ConflictLog журнал конфликтов (только добавление)
	Version      int64            `json:"version"`      // Version версия, назначенная удалённым хранилищем
}

// NewSnapshot creates an empty snapshot owned by deviceID.
func NewSnapshot(deviceID string) *Snapshot {
	return &Snapshot{
		Payload:  make(map[string]any),
		DeviceID: deviceID,
	}
}

// Fragment возвращает значение фрагмента и признак его наличия.
func (s *Snapshot) Fragment(name string) (any, bool) {
	if s == nil || s.Payload == nil {
		return nil, false
	}
	v, ok := s.Payload[name]
	return v, ok
}

// Clone создает глубокую копию снапшота
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	payload := make(map[string]any, len(s.Payload))
	for k, v := range s.Payload {
		payload[k] = CloneValue(v)
	}

	var log []ConflictRecord
	if s.ConflictLog != nil {
		log = make([]ConflictRecord, len(s.ConflictLog))
		for i, rec := range s.ConflictLog {
			log[i] = rec.Clone()
		}
	}

	return &Snapshot{
		LastModified: s.LastModified,
		Payload:      payload,
		DeviceID:     s.DeviceID,
		ConflictLog:  log,
		Version:      s.Version,
	}
}

// CloneValue deep copies a JSON-normalized value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Normalize переводит произвольное Go-значение в JSON-нормализованную форму
// (map[string]any, []any, float64, string, bool, nil).
// После нормализации значение не разделяет память с исходным.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return out, nil
}

// EntityKey returns the string form of a record's id field.
func EntityKey(record map[string]any) (string, bool) {
	raw, ok := record[FieldID]
	if !ok {
		return "", false
	}

	switch id := raw.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

// RecordTimestamp извлекает lastModified из записи.
// Поддерживаются RFC3339 строки и unix-миллисекунды.
func RecordTimestamp(record map[string]any) (time.Time, bool) {
	raw, ok := record[FieldLastModified]
	if !ok {
		return time.Time{}, false
	}

	switch ts := raw.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case float64:
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ts)), true
	default:
		return time.Time{}, false
	}
}

// IsCollection reports whether v is an ordered sequence of records that all carry an id.
// An empty sequence is treated as a collection.
func IsCollection(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}

	for _, item := range list {
		record, ok := item.(map[string]any)
		if !ok {
			return false
		}
		if _, ok := EntityKey(record); !ok {
			return false
		}
	}

	return true
}
