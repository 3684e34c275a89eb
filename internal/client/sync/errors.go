package sync

import (
	"errors"
	"fmt"

	"github.com/iudanet/statesync/internal/models"
)

var (
	// ErrVersionConflict - push отклонён из-за устаревшей версии. Ожидаемая ситуация,
	// разрешается слиянием и только журналируется.
	ErrVersionConflict = errors.New("version conflict")

	// ErrConflictUnresolved - после нескольких циклов слияния push всё ещё отклоняется:
	// параллельные писатели обгоняют цикл слияния.
	ErrConflictUnresolved = errors.New("conflict could not be resolved")

	// ErrStopped is returned by commands sent after Run has returned.
	ErrStopped = errors.New("coordinator stopped")
)

// PermanentFailure сообщает, что операция исчерпала лимит повторов и перенесена в dead-letter.
// Требует ручной пересинхронизации (RequeueDeadLetters или Restore).
type PermanentFailure struct {
	Err       error
	Operation *models.QueuedOperation
}

func (e *PermanentFailure) Error() string {
	return fmt.Sprintf("operation %s on %q failed permanently after %d attempts: %v",
		e.Operation.ID, e.Operation.TargetFragment, e.Operation.RetryCount, e.Err)
}

func (e *PermanentFailure) Unwrap() error {
	return e.Err
}
