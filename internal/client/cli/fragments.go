package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/iudanet/statesync/internal/client/capture"
	"github.com/iudanet/statesync/internal/models"
)

// Значения по умолчанию для известных фрагментов; остальные начинаются с пустой записи
var fragmentDefaults = map[string]any{
	"pet":       map[string]any{"name": "", "hunger": float64(0), "happiness": float64(100)},
	"inventory": []any{},
	"coins":     float64(0),
	"streak":    map[string]any{"days": float64(0)},
	"quests":    []any{},
}

func defaultsFor(name string) any {
	if v, ok := fragmentDefaults[name]; ok {
		return models.CloneValue(v)
	}
	return map[string]any{}
}

var (
	_ capture.Provider  = (*FileFragment)(nil)
	_ capture.Validator = (*FileFragment)(nil)
)

// FileFragment - провайдер фрагмента, хранящий значение в JSON-файле.
// Внешние правки файла обнаруживает Poll.
type FileFragment struct {
	inner  *capture.Fragment
	logger *slog.Logger
	path   string
	known  []byte // содержимое файла, уже учтённое синхронизацией
	mu     sync.Mutex
}

// OpenFileFragment loads the fragment from path, creating the file with defaults if missing.
func OpenFileFragment(path string, defaults any, logger *slog.Logger) (*FileFragment, error) {
	f := &FileFragment{
		inner:  capture.NewFragment(defaults),
		logger: logger,
		path:   path,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := f.persist(); err != nil {
			return nil, err
		}
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read fragment file: %w", err)
	}

	value, err := decodeFragment(data)
	if err != nil {
		return nil, fmt.Errorf("fragment file %s: %w", path, err)
	}
	if err := f.inner.Set(value); err != nil {
		return nil, err
	}
	f.known = data
	return f, nil
}

// Read implements capture.Provider.
func (f *FileFragment) Read() (any, error) {
	return f.inner.Read()
}

// Write implements capture.Provider and rewrites the file.
func (f *FileFragment) Write(value any) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	applied := f.inner.Write(value)

	// Неучтённую внешнюю правку не затираем: Poll поставит её в очередь
	if data, err := os.ReadFile(f.path); err == nil && !bytes.Equal(data, f.known) {
		f.logger.Info("Fragment file has pending edits, keeping them", "path", f.path)
		return applied
	}

	if err := f.persistLocked(); err != nil {
		// Значение в памяти уже применено; файл догонит при следующей записи
		f.logger.Error("Failed to persist fragment", "path", f.path, "error", err)
	}
	return applied
}

// Validate implements capture.Validator.
func (f *FileFragment) Validate(value any) error {
	return f.inner.Validate(value)
}

// Set заменяет значение и записывает файл.
func (f *FileFragment) Set(value any) error {
	if err := f.inner.Validate(value); err != nil {
		return err
	}
	if err := f.inner.Set(value); err != nil {
		return err
	}
	return f.persist()
}

// Poll перечитывает файл. changed=true, если содержимое изменили снаружи.
func (f *FileFragment) Poll() (value any, changed bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read fragment file: %w", err)
	}
	if bytes.Equal(data, f.known) {
		return nil, false, nil
	}

	value, err = decodeFragment(data)
	if err != nil {
		return nil, false, fmt.Errorf("fragment file %s: %w", f.path, err)
	}
	if err := f.inner.Validate(value); err != nil {
		return nil, false, fmt.Errorf("fragment file %s: %w", f.path, err)
	}
	if err := f.inner.Set(value); err != nil {
		return nil, false, err
	}
	f.known = data
	return f.inner.Get(), true, nil
}

func (f *FileFragment) persist() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistLocked()
}

// persistLocked пишет через временный файл, чтобы читатель не увидел половину JSON
func (f *FileFragment) persistLocked() error {
	data, err := json.MarshalIndent(f.inner.Get(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fragment: %w", err)
	}
	data = append(data, '\n')

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write fragment file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace fragment file: %w", err)
	}
	f.known = data
	return nil
}

func decodeFragment(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return value, nil
}

// openFragments открывает файлы всех фрагментов в dir
func openFragments(dir string, names []string, logger *slog.Logger) (map[string]*FileFragment, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	fragments := make(map[string]*FileFragment, len(names))
	for _, name := range names {
		f, err := OpenFileFragment(filepath.Join(dir, name+".json"), defaultsFor(name), logger.With("fragment", name))
		if err != nil {
			return nil, err
		}
		fragments[name] = f
	}
	return fragments, nil
}
