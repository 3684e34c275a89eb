package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuedOperation_Validate(t *testing.T) {
	tests := []struct {
		op      QueuedOperation
		name    string
		wantErr bool
	}{
		{
			name: "fragment update",
			op:   QueuedOperation{Type: OperationUpdate, TargetFragment: "progress", Data: map[string]any{"level": float64(2)}},
		},
		{
			name: "entity delete without data",
			op:   QueuedOperation{Type: OperationDelete, TargetFragment: "inventory", EntityID: "a"},
		},
		{
			name:    "empty fragment",
			op:      QueuedOperation{Type: OperationUpdate},
			wantErr: true,
		},
		{
			name:    "unknown type",
			op:      QueuedOperation{Type: "upsert", TargetFragment: "progress"},
			wantErr: true,
		},
		{
			name:    "entity create with scalar data",
			op:      QueuedOperation{Type: OperationCreate, TargetFragment: "inventory", EntityID: "a", Data: "oops"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOperation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestQueuedOperation_ApplyIsIdempotent(t *testing.T) {
	tests := []struct {
		initial map[string]any
		want    map[string]any
		name    string
		op      QueuedOperation
	}{
		{
			name: "append entity",
			op: QueuedOperation{
				Type:           OperationCreate,
				TargetFragment: "inventory",
				EntityID:       "c",
				Data:           map[string]any{"qty": float64(1)},
			},
			initial: map[string]any{"inventory": []any{map[string]any{"id": "a", "qty": float64(3)}}},
			want: map[string]any{"inventory": []any{
				map[string]any{"id": "a", "qty": float64(3)},
				map[string]any{"id": "c", "qty": float64(1)},
			}},
		},
		{
			name: "append to missing collection",
			op: QueuedOperation{
				Type:           OperationCreate,
				TargetFragment: "quests",
				EntityID:       "q1",
				Data:           map[string]any{"done": false},
			},
			initial: map[string]any{},
			want:    map[string]any{"quests": []any{map[string]any{"id": "q1", "done": false}}},
		},
		{
			name: "update entity keeps numeric id",
			op: QueuedOperation{
				Type:           OperationUpdate,
				TargetFragment: "pets",
				EntityID:       "7",
				Data:           map[string]any{"id": "7", "mood": "happy"},
			},
			initial: map[string]any{"pets": []any{map[string]any{"id": float64(7), "mood": "sad", "name": "Rex"}}},
			want:    map[string]any{"pets": []any{map[string]any{"id": float64(7), "mood": "happy", "name": "Rex"}}},
		},
		{
			name: "delete entity",
			op: QueuedOperation{
				Type:           OperationDelete,
				TargetFragment: "inventory",
				EntityID:       "a",
			},
			initial: map[string]any{"inventory": []any{
				map[string]any{"id": "a"},
				map[string]any{"id": "b"},
			}},
			want: map[string]any{"inventory": []any{map[string]any{"id": "b"}}},
		},
		{
			name: "merge record fragment",
			op: QueuedOperation{
				Type:           OperationUpdate,
				TargetFragment: "progress",
				Data:           map[string]any{"xp": float64(40)},
			},
			initial: map[string]any{"progress": map[string]any{"level": float64(2), "xp": float64(10)}},
			want:    map[string]any{"progress": map[string]any{"level": float64(2), "xp": float64(40)}},
		},
		{
			name: "replace scalar fragment",
			op: QueuedOperation{
				Type:           OperationUpdate,
				TargetFragment: "coins",
				Data:           float64(80),
			},
			initial: map[string]any{"coins": float64(100)},
			want:    map[string]any{"coins": float64(80)},
		},
		{
			name: "delete fragment",
			op: QueuedOperation{
				Type:           OperationDelete,
				TargetFragment: "coins",
			},
			initial: map[string]any{"coins": float64(100), "petName": "Rex"},
			want:    map[string]any{"petName": "Rex"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := CloneValue(tt.initial).(map[string]any)
			require.NoError(t, tt.op.Apply(once))
			assert.Equal(t, tt.want, once)

			twice := CloneValue(tt.initial).(map[string]any)
			require.NoError(t, tt.op.Apply(twice))
			require.NoError(t, tt.op.Apply(twice))
			assert.Equal(t, once, twice)
		})
	}
}

func TestQueuedOperation_ApplyDoesNotAliasData(t *testing.T) {
	op := QueuedOperation{
		Type:           OperationCreate,
		TargetFragment: "progress",
		Data:           map[string]any{"level": float64(1)},
	}
	payload := map[string]any{}

	require.NoError(t, op.Apply(payload))
	payload["progress"].(map[string]any)["level"] = float64(5)

	assert.Equal(t, float64(1), op.Data.(map[string]any)["level"])
}

func TestQueuedOperation_ApplyToNonCollection(t *testing.T) {
	op := QueuedOperation{
		Type:           OperationUpdate,
		TargetFragment: "coins",
		EntityID:       "a",
		Data:           map[string]any{"qty": float64(1)},
	}

	err := op.Apply(map[string]any{"coins": float64(10)})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestQueuedOperation_Coalesce(t *testing.T) {
	now := time.Now()

	t.Run("record update merges fields", func(t *testing.T) {
		op := &QueuedOperation{
			Type:           OperationUpdate,
			TargetFragment: "progress",
			Data:           map[string]any{"level": float64(2)},
			RetryCount:     3,
			LastError:      "timeout",
		}
		next := &QueuedOperation{
			Type:           OperationUpdate,
			TargetFragment: "progress",
			Data:           map[string]any{"xp": float64(15)},
			EnqueuedAt:     now,
		}

		require.True(t, op.CoalescesWith(next))
		op.Absorb(next)

		assert.Equal(t, map[string]any{"level": float64(2), "xp": float64(15)}, op.Data)
		assert.Equal(t, OperationUpdate, op.Type)
		assert.Equal(t, 0, op.RetryCount)
		assert.Empty(t, op.LastError)
		assert.Equal(t, now, op.EnqueuedAt)
	})

	t.Run("create stays create", func(t *testing.T) {
		op := &QueuedOperation{Type: OperationCreate, TargetFragment: "inventory", EntityID: "a", Data: map[string]any{"qty": float64(1)}}
		next := &QueuedOperation{Type: OperationUpdate, TargetFragment: "inventory", EntityID: "a", Data: map[string]any{"qty": float64(2)}}

		op.Absorb(next)

		assert.Equal(t, OperationCreate, op.Type)
		assert.Equal(t, map[string]any{"qty": float64(2)}, op.Data)
	})

	t.Run("delete never coalesces", func(t *testing.T) {
		op := &QueuedOperation{Type: OperationUpdate, TargetFragment: "inventory", EntityID: "a"}
		next := &QueuedOperation{Type: OperationDelete, TargetFragment: "inventory", EntityID: "a"}
		assert.False(t, op.CoalescesWith(next))
		assert.False(t, next.CoalescesWith(op))
	})

	t.Run("different entity", func(t *testing.T) {
		op := &QueuedOperation{Type: OperationUpdate, TargetFragment: "inventory", EntityID: "a"}
		next := &QueuedOperation{Type: OperationUpdate, TargetFragment: "inventory", EntityID: "b"}
		assert.False(t, op.CoalescesWith(next))
	})
}
