package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/statesync/internal/models"
)

//go:generate moq -out provider_mock.go . Provider

// Provider отдаёт и принимает значение одного фрагмента состояния.
// Синхронизатор не владеет состоянием провайдера и не интерпретирует его содержимое.
type Provider interface {
	// Read возвращает текущее значение фрагмента
	Read() (any, error)

	// Write применяет значение фрагмента. nil означает "применить значения по умолчанию".
	// Write не должен падать на неизвестных или отсутствующих полях; он возвращает
	// список полей, для которых были подставлены значения по умолчанию.
	Write(value any) []string
}

// Validator may be implemented by a Provider to check a fragment before Restore writes it.
type Validator interface {
	Validate(value any) error
}

// RestoreResult описывает итог восстановления снапшота.
type RestoreResult struct {
	// AppliedDefaults поля с подставленными значениями по умолчанию, по фрагментам
	AppliedDefaults map[string][]string
	// Defaulted фрагменты, которые целиком или частично получили значения по умолчанию
	Defaulted []string
	// Corrupt фрагменты, не прошедшие структурную проверку
	Corrupt []*CorruptSnapshotError
}

// Err returns the corrupt fragments joined into one error, or nil.
func (r *RestoreResult) Err() error {
	if len(r.Corrupt) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Corrupt))
	for _, c := range r.Corrupt {
		errs = append(errs, c)
	}
	return errors.Join(errs...)
}

// Capture собирает снапшот из зарегистрированных провайдеров и восстанавливает его обратно.
type Capture struct {
	now       func() time.Time
	providers map[string]Provider
	last      *models.Snapshot
	logger    *slog.Logger
	deviceID  string
	mu        sync.Mutex
}

// New creates a Capture for the given device.
func New(deviceID string, logger *slog.Logger) *Capture {
	return &Capture{
		now:       time.Now,
		providers: make(map[string]Provider),
		logger:    logger,
		deviceID:  deviceID,
	}
}

// Register регистрирует провайдер фрагмента. Повторная регистрация заменяет провайдер.
func (c *Capture) Register(name string, p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = p
}

// Fragments returns registered fragment names in sorted order.
func (c *Capture) Fragments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fragmentsLocked()
}

func (c *Capture) fragmentsLocked() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeviceID returns the device id stamped on captured snapshots.
func (c *Capture) DeviceID() string {
	return c.deviceID
}

// Capture читает значения всех провайдеров и собирает новый снапшот.
// Если хотя бы один провайдер вернул ошибку, возвращается *CaptureError,
// а последний успешный снапшот остаётся без изменений.
func (c *Capture) Capture() (*models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := make(map[string]any, len(c.providers))
	for _, name := range c.fragmentsLocked() {
		value, err := readProvider(c.providers[name])
		if err != nil {
			c.logger.Warn("Failed to capture fragment", "fragment", name, "error", err)
			return nil, &CaptureError{Fragment: name, Err: err}
		}

		normalized, err := models.Normalize(value)
		if err != nil {
			c.logger.Warn("Fragment is not serializable", "fragment", name, "error", err)
			return nil, &CaptureError{Fragment: name, Err: err}
		}
		payload[name] = normalized
	}

	snap := &models.Snapshot{
		LastModified: c.now().UTC(),
		Payload:      payload,
		DeviceID:     c.deviceID,
	}
	c.last = snap

	return snap.Clone(), nil
}

// Last возвращает последний успешно собранный снапшот или nil.
func (c *Capture) Last() *models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Clone()
}

// Restore применяет фрагменты снапшота к провайдерам.
// Restore никогда не завершается ошибкой: отсутствующие и повреждённые фрагменты
// получают значения по умолчанию и перечисляются в результате.
func (c *Capture) Restore(snap *models.Snapshot) *RestoreResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := &RestoreResult{AppliedDefaults: make(map[string][]string)}

	var payload map[string]any
	if snap != nil {
		payload = snap.Payload
	}

	for _, name := range c.fragmentsLocked() {
		p := c.providers[name]

		value, ok := payload[name]
		if ok {
			if err := validate(p, value); err != nil {
				corrupt := &CorruptSnapshotError{Fragment: name, Err: err}
				c.logger.Warn("Corrupt fragment, falling back to defaults", "fragment", name, "error", err)
				result.Corrupt = append(result.Corrupt, corrupt)
				value, ok = nil, false
			}
		}

		defaults := writeProvider(p, models.CloneValue(value))
		if !ok || len(defaults) > 0 {
			result.Defaulted = append(result.Defaulted, name)
		}
		if len(defaults) > 0 {
			result.AppliedDefaults[name] = defaults
		}
	}

	for name := range payload {
		if _, ok := c.providers[name]; !ok {
			c.logger.Debug("Skipping fragment without provider", "fragment", name)
		}
	}

	if snap != nil {
		restored := snap.Clone()
		c.last = restored
	}

	if len(result.Defaulted) > 0 {
		c.logger.Info("Restored snapshot with defaults", "fragments", result.Defaulted)
	}

	return result
}

// readProvider вызывает Read, превращая панику провайдера в ошибку.
func readProvider(p Provider) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.Read()
}

// writeProvider вызывает Write; паника провайдера считается откатом к значениям по умолчанию.
func writeProvider(p Provider, value any) (defaults []string) {
	defer func() {
		if r := recover(); r != nil {
			defaults = []string{"*"}
		}
	}()
	return p.Write(value)
}

func validate(p Provider, value any) error {
	v, ok := p.(Validator)
	if !ok {
		return nil
	}
	return v.Validate(value)
}
