package storage

import (
	"context"

	"github.com/iudanet/statesync/internal/models"
)

// QueueStorage is a durable FIFO of pending operations plus a dead-letter set.
// Order is global, so operations on one fragment are never reordered.
type QueueStorage interface {
	// Enqueue appends op to the queue and assigns op.Seq.
	// If the last pending operation targets the same fragment and entity and
	// op coalesces with it, op is folded into that entry and coalesced is true.
	Enqueue(ctx context.Context, op *models.QueuedOperation) (coalesced bool, err error)

	// DequeueNext removes and returns the oldest pending operation
	// Returns ErrQueueEmpty if there is none
	DequeueNext(ctx context.Context) (*models.QueuedOperation, error)

	// ListPending returns pending operations in enqueue order
	ListPending(ctx context.Context) ([]*models.QueuedOperation, error)

	// PendingCount returns the number of pending operations
	PendingCount(ctx context.Context) (int, error)

	// Ack removes delivered operations. Unknown ids are ignored.
	Ack(ctx context.Context, ids ...string) error

	// MarkFailed increments RetryCount of a pending operation.
	// Once RetryCount exceeds the ceiling the operation moves to the dead-letter set
	// and deadLettered is true.
	MarkFailed(ctx context.Context, id string, cause error) (deadLettered bool, err error)

	// DeadLetter moves a pending operation to the dead-letter set immediately,
	// for operations that can never be delivered.
	// Returns ErrOperationNotFound if id is not pending.
	DeadLetter(ctx context.Context, id string, cause error) error

	// ListDeadLetters returns dead-lettered operations in original enqueue order
	ListDeadLetters(ctx context.Context) ([]*models.QueuedOperation, error)

	// RequeueDeadLetters moves all dead letters back to the tail of the queue
	// with RetryCount reset. Returns the number of requeued operations.
	RequeueDeadLetters(ctx context.Context) (int, error)

	// ClearQueue drops pending operations and dead letters
	ClearQueue(ctx context.Context) error
}

// LocalStore объединяет всё долговечное состояние устройства.
// Доступ к нему идёт только через координатор синхронизации.
type LocalStore interface {
	SnapshotStorage
	QueueStorage
	MetadataStorage
}
