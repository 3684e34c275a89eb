package capture

import (
	"fmt"
	"sort"
	"sync"

	"github.com/iudanet/statesync/internal/models"
)

// Fragment is an in-memory Provider holding one JSON-normalized value.
// The shape of its default value doubles as the structural check used by Restore.
type Fragment struct {
	value    any
	defaults any
	mu       sync.RWMutex
}

// NewFragment creates a fragment initialized with its default value.
func NewFragment(defaults any) *Fragment {
	if normalized, err := models.Normalize(defaults); err == nil {
		defaults = normalized
	}
	return &Fragment{
		value:    models.CloneValue(defaults),
		defaults: models.CloneValue(defaults),
	}
}

// Get returns a copy of the current value.
func (f *Fragment) Get() any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return models.CloneValue(f.value)
}

// Set заменяет значение фрагмента.
func (f *Fragment) Set(value any) error {
	normalized, err := models.Normalize(value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = normalized
	return nil
}

// Read implements Provider.
func (f *Fragment) Read() (any, error) {
	return f.Get(), nil
}

// Write implements Provider. Для записей недостающие поля берутся из значений по умолчанию.
func (f *Fragment) Write(value any) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if value == nil {
		f.value = models.CloneValue(f.defaults)
		return defaultFields(f.defaults)
	}

	record, ok := value.(map[string]any)
	defaults, hasDefaults := f.defaults.(map[string]any)
	if !ok || !hasDefaults {
		f.value = models.CloneValue(value)
		return nil
	}

	merged := models.CloneValue(record).(map[string]any)
	var applied []string
	for k, v := range defaults {
		if _, ok := merged[k]; !ok {
			merged[k] = models.CloneValue(v)
			applied = append(applied, k)
		}
	}
	sort.Strings(applied)
	f.value = merged

	return applied
}

// Validate implements Validator: the value must have the same JSON kind as the default.
func (f *Fragment) Validate(value any) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.defaults == nil || value == nil {
		return nil
	}

	want, got := kindOf(f.defaults), kindOf(value)
	if want != got {
		return fmt.Errorf("expected %s, got %s", want, got)
	}
	return nil
}

func defaultFields(defaults any) []string {
	record, ok := defaults.(map[string]any)
	if !ok || len(record) == 0 {
		return []string{"*"}
	}

	fields := make([]string, 0, len(record))
	for k := range record {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "record"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
