package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang/snappy"
	"go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/crypto"
)

var (
	// BoltDB bucket names
	bucketSnapshots  = []byte("snapshots")
	bucketQueue      = []byte("queue")
	bucketDeadLetter = []byte("deadletter")
	bucketMetadata   = []byte("metadata")
)

// DefaultRetryCeiling - после стольких неудачных попыток операция уходит в dead-letter
const DefaultRetryCeiling = 5

const openTimeout = time.Second

// Формат значения: первый байт описывает кодирование, дальше snappy(JSON),
// при включённом шифровании - запечатанный AES-GCM.
const (
	formatPlain  byte = 0x01
	formatSealed byte = 0x02
)

var _ storage.LocalStore = (*Storage)(nil)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db           *bbolt.DB
	sealer       *crypto.Sealer
	logger       *slog.Logger
	passphrase   string
	retryCeiling int
}

// Option настраивает Storage.
type Option func(*Storage)

// WithRetryCeiling sets how many failed push attempts an operation survives.
func WithRetryCeiling(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.retryCeiling = n
		}
	}
}

// WithPassphrase включает шифрование снапшотов и операций ключом из пароля устройства.
func WithPassphrase(passphrase string) Option {
	return func(s *Storage) {
		s.passphrase = passphrase
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	s := &Storage{
		retryCeiling: DefaultRetryCeiling,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Открываем BoltDB
	// Файл держит эксклюзивная блокировка: второй процесс получит ошибку, а не зависнет
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if errors.Is(err, bolterrors.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", storage.ErrLocked, dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}
	s.db = db

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	if s.passphrase != "" {
		if err := s.initSealer(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSnapshots, bucketQueue, bucketDeadLetter, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// initSealer выводит ключ из пароля. Соль и отпечаток ключа создаются при первом открытии.
func (s *Storage) initSealer(ctx context.Context) error {
	salt, err := s.getMeta(keySalt)
	if err != nil {
		return err
	}
	fresh := salt == nil
	if fresh {
		if salt, err = crypto.GenerateSalt(); err != nil {
			return err
		}
	}

	key, err := crypto.DeriveKey(s.passphrase, salt)
	if err != nil {
		return fmt.Errorf("failed to derive storage key: %w", err)
	}

	if fresh {
		if err := s.putMeta(keySalt, salt); err != nil {
			return err
		}
		if err := s.putMeta(keyFingerprint, []byte(crypto.Fingerprint(key))); err != nil {
			return err
		}
		s.logger.Info("Initialized encrypted local storage")
	} else {
		fp, err := s.getMeta(keyFingerprint)
		if err != nil {
			return err
		}
		if err := crypto.VerifyFingerprint(key, string(fp)); err != nil {
			return storage.ErrWrongPassphrase
		}
	}

	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return err
	}
	s.sealer = sealer
	return nil
}

// encode сериализует значение для хранения в bucket.
func (s *Storage) encode(v any, label []byte) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	if s.sealer == nil {
		return append([]byte{formatPlain}, compressed...), nil
	}

	sealed, err := s.sealer.Seal(compressed, string(label))
	if err != nil {
		return nil, fmt.Errorf("failed to seal value: %w", err)
	}
	return append([]byte{formatSealed}, sealed...), nil
}

// decode восстанавливает значение, записанное encode.
func (s *Storage) decode(raw []byte, label []byte, v any) error {
	if len(raw) == 0 {
		return errors.New("empty value")
	}

	body := raw[1:]
	switch raw[0] {
	case formatPlain:
	case formatSealed:
		if s.sealer == nil {
			return storage.ErrWrongPassphrase
		}
		opened, err := s.sealer.Open(body, string(label))
		if err != nil {
			return fmt.Errorf("failed to open sealed value: %w", err)
		}
		body = opened
	default:
		return fmt.Errorf("unknown value format 0x%02x", raw[0])
	}

	data, err := snappy.Decode(nil, body)
	if err != nil {
		return fmt.Errorf("failed to decompress value: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}
