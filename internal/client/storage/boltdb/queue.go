package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/models"
)

// Ключ операции - её порядковый номер в BigEndian, поэтому курсор bbolt
// обходит очередь в порядке постановки.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Enqueue appends op to the queue, coalescing it with the tail when possible
func (s *Storage) Enqueue(ctx context.Context, op *models.QueuedOperation) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}
	if err := op.Validate(); err != nil {
		return false, err
	}

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now().UTC()
	}

	coalesced := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		// Пробуем слить с последней операцией в очереди
		if key, data := bucket.Cursor().Last(); key != nil {
			var last models.QueuedOperation
			if err := s.decode(data, bucketQueue, &last); err != nil {
				return err
			}
			if last.CoalescesWith(op) {
				last.Absorb(op)
				encoded, err := s.encode(&last, bucketQueue)
				if err != nil {
					return err
				}
				if err := bucket.Put(key, encoded); err != nil {
					return fmt.Errorf("failed to update operation: %w", err)
				}
				*op = last
				coalesced = true
				return nil
			}
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		op.Seq = seq

		encoded, err := s.encode(op, bucketQueue)
		if err != nil {
			return err
		}
		if err := bucket.Put(seqKey(seq), encoded); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	return coalesced, nil
}

// DequeueNext removes and returns the oldest pending operation
func (s *Storage) DequeueNext(ctx context.Context) (*models.QueuedOperation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var op *models.QueuedOperation
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return storage.ErrQueueEmpty
		}

		c := bucket.Cursor()
		key, data := c.First()
		if key == nil {
			return storage.ErrQueueEmpty
		}

		op = &models.QueuedOperation{}
		if err := s.decode(data, bucketQueue, op); err != nil {
			return err
		}
		return c.Delete()
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// ListPending returns pending operations in enqueue order
func (s *Storage) ListPending(ctx context.Context) ([]*models.QueuedOperation, error) {
	return s.list(bucketQueue)
}

// ListDeadLetters returns dead-lettered operations
func (s *Storage) ListDeadLetters(ctx context.Context) ([]*models.QueuedOperation, error) {
	return s.list(bucketDeadLetter)
}

// PendingCount returns the number of pending operations
func (s *Storage) PendingCount(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket(bucketQueue); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Ack removes delivered operations
func (s *Storage) Ack(ctx context.Context, ids ...string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(ids) == 0 {
		return nil
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}

		var keys [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var op models.QueuedOperation
			if err := s.decode(v, bucketQueue, &op); err != nil {
				return err
			}
			if _, ok := want[op.ID]; ok {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Удаляем после обхода: ForEach не допускает изменения bucket
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to ack operation: %w", err)
			}
		}
		return nil
	})
}

// MarkFailed increments RetryCount; above the ceiling the operation is dead-lettered
func (s *Storage) MarkFailed(ctx context.Context, id string, cause error) (bool, error) {
	return s.fail(id, cause, false)
}

// DeadLetter moves a pending operation to the dead-letter set regardless of RetryCount
func (s *Storage) DeadLetter(ctx context.Context, id string, cause error) error {
	_, err := s.fail(id, cause, true)
	return err
}

// fail учитывает неудачную попытку; force переносит операцию в dead-letter сразу
func (s *Storage) fail(id string, cause error, force bool) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	deadLettered := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		queue := tx.Bucket(bucketQueue)
		dead := tx.Bucket(bucketDeadLetter)
		if queue == nil || dead == nil {
			return fmt.Errorf("queue buckets not found")
		}

		c := queue.Cursor()
		for key, data := c.First(); key != nil; key, data = c.Next() {
			var op models.QueuedOperation
			if err := s.decode(data, bucketQueue, &op); err != nil {
				return err
			}
			if op.ID != id {
				continue
			}

			op.RetryCount++
			if cause != nil {
				op.LastError = cause.Error()
			}

			if !force && op.RetryCount <= s.retryCeiling {
				encoded, err := s.encode(&op, bucketQueue)
				if err != nil {
					return err
				}
				return queue.Put(key, encoded)
			}

			// Потолок превышен: переносим в dead-letter под тем же порядковым номером
			encoded, err := s.encode(&op, bucketDeadLetter)
			if err != nil {
				return err
			}
			if err := dead.Put(key, encoded); err != nil {
				return fmt.Errorf("failed to dead-letter operation: %w", err)
			}
			deadLettered = true
			return c.Delete()
		}

		return storage.ErrOperationNotFound
	})
	if err != nil {
		return false, err
	}

	if deadLettered {
		s.logger.Warn("Operation moved to dead-letter", "op_id", id, "retry_ceiling", s.retryCeiling, "forced", force)
	}
	return deadLettered, nil
}

// RequeueDeadLetters moves dead letters back to the tail of the queue
func (s *Storage) RequeueDeadLetters(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		queue := tx.Bucket(bucketQueue)
		dead := tx.Bucket(bucketDeadLetter)
		if queue == nil || dead == nil {
			return fmt.Errorf("queue buckets not found")
		}

		c := dead.Cursor()
		for key, data := c.First(); key != nil; key, data = c.First() {
			var op models.QueuedOperation
			if err := s.decode(data, bucketDeadLetter, &op); err != nil {
				return err
			}

			seq, err := queue.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate sequence: %w", err)
			}
			op.Seq = seq
			op.RetryCount = 0
			op.LastError = ""

			encoded, err := s.encode(&op, bucketQueue)
			if err != nil {
				return err
			}
			if err := queue.Put(seqKey(seq), encoded); err != nil {
				return fmt.Errorf("failed to requeue operation: %w", err)
			}
			if err := c.Delete(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to requeue dead letters: %w", err)
	}

	return n, nil
}

// ClearQueue drops pending operations and dead letters
func (s *Storage) ClearQueue(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketQueue, bucketDeadLetter} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolterrors.ErrBucketNotFound) {
				return fmt.Errorf("failed to delete %s bucket: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Storage) list(name []byte) ([]*models.QueuedOperation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	ops := make([]*models.QueuedOperation, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(name)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			op := &models.QueuedOperation{}
			if err := s.decode(v, name, op); err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", name, err)
	}

	return ops, nil
}
