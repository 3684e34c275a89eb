package capture

import (
	"errors"
	"fmt"
)

// ErrUnknownFragment is returned when a fragment has no registered provider.
var ErrUnknownFragment = errors.New("unknown fragment")

// CaptureError сообщает, что провайдер фрагмента не смог отдать своё значение.
// Предыдущий успешный снапшот при этом остаётся актуальным.
type CaptureError struct {
	Err      error
	Fragment string
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture fragment %q: %v", e.Fragment, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// CorruptSnapshotError сообщает, что фрагмент снапшота не прошёл структурную проверку.
// Restore в этом случае подставляет значения по умолчанию и продолжает работу.
type CorruptSnapshotError struct {
	Err      error
	Fragment string
}

func (e *CorruptSnapshotError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("corrupt snapshot: %v", e.Err)
	}
	return fmt.Sprintf("corrupt snapshot fragment %q: %v", e.Fragment, e.Err)
}

func (e *CorruptSnapshotError) Unwrap() error {
	return e.Err
}
