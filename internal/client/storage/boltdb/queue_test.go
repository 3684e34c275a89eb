package boltdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/models"
)

func inventoryOp(entityID string, qty float64) *models.QueuedOperation {
	return &models.QueuedOperation{
		Type:           models.OperationCreate,
		TargetFragment: "inventory",
		EntityID:       entityID,
		Data:           map[string]any{"qty": qty},
	}
}

func TestStorage_EnqueueFIFO(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	ops := []*models.QueuedOperation{
		inventoryOp("a", 1),
		{Type: models.OperationUpdate, TargetFragment: "progress", Data: map[string]any{"xp": float64(5)}},
		inventoryOp("b", 2),
		inventoryOp("c", 3),
	}
	for _, op := range ops {
		coalesced, err := store.Enqueue(ctx, op)
		require.NoError(t, err)
		assert.False(t, coalesced)
		assert.NotEmpty(t, op.ID)
		assert.False(t, op.EnqueuedAt.IsZero())
	}

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	for i, op := range pending {
		assert.Equal(t, ops[i].ID, op.ID)
		if i > 0 {
			assert.Greater(t, op.Seq, pending[i-1].Seq)
		}
	}

	n, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	first, err := store.DequeueNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, ops[0].ID, first.ID)

	n, err = store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStorage_EnqueueRejectsInvalid(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.Enqueue(context.Background(), &models.QueuedOperation{Type: models.OperationUpdate})
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestStorage_DequeueEmpty(t *testing.T) {
	store := createTestStorage(t)

	op, err := store.DequeueNext(context.Background())
	assert.ErrorIs(t, err, storage.ErrQueueEmpty)
	assert.Nil(t, op)
}

func TestStorage_EnqueueCoalescesTail(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	first := &models.QueuedOperation{Type: models.OperationUpdate, TargetFragment: "progress", Data: map[string]any{"level": float64(2)}}
	_, err := store.Enqueue(ctx, first)
	require.NoError(t, err)

	second := &models.QueuedOperation{Type: models.OperationUpdate, TargetFragment: "progress", Data: map[string]any{"xp": float64(30)}}
	coalesced, err := store.Enqueue(ctx, second)
	require.NoError(t, err)
	assert.True(t, coalesced)
	assert.Equal(t, first.ID, second.ID)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, map[string]any{"level": float64(2), "xp": float64(30)}, pending[0].Data)

	// Операция на другой фрагмент разрывает цепочку слияния
	_, err = store.Enqueue(ctx, inventoryOp("a", 1))
	require.NoError(t, err)
	third := &models.QueuedOperation{Type: models.OperationUpdate, TargetFragment: "progress", Data: map[string]any{"xp": float64(40)}}
	coalesced, err = store.Enqueue(ctx, third)
	require.NoError(t, err)
	assert.False(t, coalesced)

	n, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStorage_Ack(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	a, b, c := inventoryOp("a", 1), inventoryOp("b", 1), inventoryOp("c", 1)
	for _, op := range []*models.QueuedOperation{a, b, c} {
		_, err := store.Enqueue(ctx, op)
		require.NoError(t, err)
	}

	require.NoError(t, store.Ack(ctx, a.ID, c.ID, "unknown"))
	require.NoError(t, store.Ack(ctx))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestStorage_RetryCeiling(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	op := inventoryOp("a", 1)
	_, err := store.Enqueue(ctx, op)
	require.NoError(t, err)
	keep := inventoryOp("b", 1)
	_, err = store.Enqueue(ctx, keep)
	require.NoError(t, err)

	cause := errors.New("network unreachable")

	// Пять неудач операция переживает
	for i := 1; i <= DefaultRetryCeiling; i++ {
		dead, err := store.MarkFailed(ctx, op.ID, cause)
		require.NoError(t, err)
		assert.False(t, dead, "attempt %d", i)
	}

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, DefaultRetryCeiling, pending[0].RetryCount)
	assert.Equal(t, "network unreachable", pending[0].LastError)

	// Шестая неудача отправляет её в dead-letter
	dead, err := store.MarkFailed(ctx, op.ID, cause)
	require.NoError(t, err)
	assert.True(t, dead)

	pending, err = store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, keep.ID, pending[0].ID)

	letters, err := store.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, op.ID, letters[0].ID)
	assert.Equal(t, DefaultRetryCeiling+1, letters[0].RetryCount)

	_, err = store.MarkFailed(ctx, op.ID, cause)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestStorage_CustomRetryCeiling(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t, WithRetryCeiling(1))

	op := inventoryOp("a", 1)
	_, err := store.Enqueue(ctx, op)
	require.NoError(t, err)

	dead, err := store.MarkFailed(ctx, op.ID, nil)
	require.NoError(t, err)
	assert.False(t, dead)

	dead, err = store.MarkFailed(ctx, op.ID, nil)
	require.NoError(t, err)
	assert.True(t, dead)
}

func TestStorage_DeadLetter(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	bad := inventoryOp("a", 1)
	_, err := store.Enqueue(ctx, bad)
	require.NoError(t, err)
	keep := inventoryOp("b", 1)
	_, err = store.Enqueue(ctx, keep)
	require.NoError(t, err)

	// Без учёта потолка повторов
	require.NoError(t, store.DeadLetter(ctx, bad.ID, errors.New("fragment is not a collection")))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, keep.ID, pending[0].ID)

	letters, err := store.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, bad.ID, letters[0].ID)
	assert.Equal(t, "fragment is not a collection", letters[0].LastError)

	err = store.DeadLetter(ctx, bad.ID, nil)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestStorage_RequeueDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t, WithRetryCeiling(1))

	a, b := inventoryOp("a", 1), inventoryOp("b", 2)
	for _, op := range []*models.QueuedOperation{a, b} {
		_, err := store.Enqueue(ctx, op)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := store.MarkFailed(ctx, a.ID, errors.New("boom"))
		require.NoError(t, err)
	}

	n, err := store.RequeueDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	letters, err := store.ListDeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, b.ID, pending[0].ID)
	assert.Equal(t, a.ID, pending[1].ID)
	assert.Zero(t, pending[1].RetryCount)
	assert.Empty(t, pending[1].LastError)
}

func TestStorage_ClearQueue(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t, WithRetryCeiling(1))

	a, b := inventoryOp("a", 1), inventoryOp("b", 2)
	for _, op := range []*models.QueuedOperation{a, b} {
		_, err := store.Enqueue(ctx, op)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := store.MarkFailed(ctx, a.ID, nil)
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearQueue(ctx))

	n, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	letters, err := store.ListDeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)

	// Очередь продолжает работать после очистки
	_, err = store.Enqueue(ctx, inventoryOp("c", 1))
	require.NoError(t, err)
}

func TestStorage_EncryptedQueue(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t, WithPassphrase("hunter2"))

	op := inventoryOp("secret-item", 9)
	_, err := store.Enqueue(ctx, op)
	require.NoError(t, err)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "secret-item", pending[0].EntityID)
	assert.Equal(t, map[string]any{"qty": float64(9)}, pending[0].Data)
}
