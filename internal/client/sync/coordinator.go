package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/statesync/internal/client/api"
	"github.com/iudanet/statesync/internal/client/capture"
	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/models"
	pkgapi "github.com/iudanet/statesync/pkg/api"
)

// ErrReset is returned by a command whose work was abandoned by Reset.
var ErrReset = errors.New("sync state was reset")

// После стольких подряд неудачных захватов состояния приложение получает уведомление
const captureFailureNotifyThreshold = 2

// Config настраивает координатор
type Config struct {
	Backoff             BackoffConfig `yaml:"backoff"`
	DebounceDelay       time.Duration `yaml:"debounce"`
	MaxConflictRetries  int           `yaml:"max_conflict_retries"`
	ConflictHistory     int           `yaml:"conflict_history"`
	NotificationBuffer  int           `yaml:"notification_buffer"`
	DisableSubscription bool          `yaml:"disable_subscription"`
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		Backoff:            DefaultBackoffConfig(),
		DebounceDelay:      2 * time.Second,
		MaxConflictRetries: 3,
		ConflictHistory:    50,
		NotificationBuffer: 16,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = def.Backoff.Base
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = def.Backoff.Max
	}
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	if cfg.ConflictHistory <= 0 {
		cfg.ConflictHistory = def.ConflictHistory
	}
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = def.NotificationBuffer
	}
	return cfg
}

type command struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// Coordinator - единственный актор синхронизации устройства.
// Все push, pull и разбор очереди выполняются последовательно в горутине Run;
// публичные методы только отправляют команды в эту горутину.
type Coordinator struct {
	store    storage.LocalStore
	remote   RemoteGateway
	source   StateCapture
	resolver ConflictResolver
	logger   *slog.Logger
	now      func() time.Time

	commands      chan command
	notifications chan pkgapi.ChangeEvent
	events        chan Event
	ready         chan struct{}
	stopped       chan struct{}

	status Status
	mu     stdsync.RWMutex

	epoch   atomic.Uint64
	running atomic.Bool

	// Поля ниже принадлежат горутине Run
	current         *models.Snapshot
	base            *models.Snapshot
	backoff         retry.Backoff
	debounce        *time.Timer
	retryTimer      *time.Timer
	lastMutation    time.Time
	captureFailures int
	dirty           bool

	cfg Config
}

// NewCoordinator creates a coordinator. Run must be started before any command is sent.
func NewCoordinator(store storage.LocalStore, remote RemoteGateway, source StateCapture, resolver ConflictResolver, cfg Config, logger *slog.Logger) *Coordinator {
	cfg = cfg.withDefaults()
	return &Coordinator{
		store:         store,
		remote:        remote,
		source:        source,
		resolver:      resolver,
		logger:        logger,
		now:           time.Now,
		commands:      make(chan command),
		notifications: make(chan pkgapi.ChangeEvent, cfg.NotificationBuffer),
		events:        make(chan Event, 64),
		ready:         make(chan struct{}),
		stopped:       make(chan struct{}),
		status:        Status{State: models.StateIdle},
		backoff:       newBackoff(cfg.Backoff),
		cfg:           cfg,
	}
}

// Run загружает локальное состояние и обслуживает команды, таймеры и уведомления до отмены ctx.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator is already running")
	}
	defer close(c.stopped)

	if err := c.load(ctx); err != nil {
		return err
	}
	close(c.ready)

	g, gctx := errgroup.WithContext(ctx)

	if !c.cfg.DisableSubscription {
		g.Go(func() error {
			// Уведомления - только оптимизация задержки, их потеря не фатальна
			if err := c.remote.Subscribe(gctx, c.notify); err != nil {
				c.logger.Warn("Change subscription stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return c.loop(gctx)
	})

	return g.Wait()
}

func (c *Coordinator) loop(ctx context.Context) error {
	defer c.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.commands:
			cmd.reply <- cmd.fn(ctx)
		case e := <-c.notifications:
			c.handleNotification(ctx, e)
		case <-timerC(c.debounce):
			c.debounce = nil
			c.runSync(ctx, "debounce")
		case <-timerC(c.retryTimer):
			c.retryTimer = nil
			c.runSync(ctx, "backoff")
		}
	}
}

// load восстанавливает последнее локальное состояние после перезапуска.
func (c *Coordinator) load(ctx context.Context) error {
	snap, err := c.store.LoadSnapshot(ctx)
	switch {
	case err == nil:
		res := c.source.Restore(snap)
		if len(res.Defaulted) > 0 {
			c.logger.Info("Local snapshot restored with defaults", "fragments", res.Defaulted)
		}
		c.current = snap
	case errors.Is(err, storage.ErrSnapshotNotFound):
		c.current = models.NewSnapshot(c.source.DeviceID())
		if captured, err := c.source.Capture(); err == nil {
			c.current.Payload = captured.Payload
			c.current.LastModified = captured.LastModified
		}
	default:
		return fmt.Errorf("failed to load local snapshot: %w", err)
	}

	base, err := c.store.LoadBase(ctx)
	switch {
	case err == nil:
		c.base = base
	case errors.Is(err, storage.ErrSnapshotNotFound):
		c.base = nil
	default:
		return fmt.Errorf("failed to load base snapshot: %w", err)
	}

	lastSynced, err := c.store.GetLastSyncedAt(ctx)
	if err != nil {
		c.logger.Warn("Failed to get last synced time", "error", err)
	}

	c.updateStatus(func(s *Status) {
		s.Version = c.current.Version
		s.LastSyncedAt = lastSynced
	})
	c.refreshCounts(ctx)

	if c.Status().PendingOperationCount > 0 {
		c.dirty = true
		c.armDebounce()
	}

	c.logger.Info("Sync coordinator started",
		"version", c.current.Version,
		"pending", c.Status().PendingOperationCount)

	return nil
}

// Status возвращает текущее состояние синхронизации. Безопасен для вызова из любой горутины.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.clone()
}

// Ready закрывается, когда локальное состояние загружено и Status() актуален.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Done закрывается после возврата из Run.
func (c *Coordinator) Done() <-chan struct{} {
	return c.stopped
}

// Events returns the channel of coordinator events.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// Mutate сохраняет локальную мутацию в очереди (долговечность до доставки)
// и планирует синхронизацию по debounce-таймеру.
func (c *Coordinator) Mutate(ctx context.Context, op *models.QueuedOperation) error {
	return c.do(ctx, func(ctx context.Context) error {
		if err := c.checkReplayable(ctx, op); err != nil {
			return err
		}

		coalesced, err := c.store.Enqueue(ctx, op)
		if err != nil {
			return fmt.Errorf("failed to enqueue operation: %w", err)
		}

		c.dirty = true
		c.lastMutation = c.now().UTC()
		c.refreshCounts(ctx)

		switch {
		case coalesced && c.retryTimer != nil:
			// Более свежая мутация заменила операцию, ждавшую повтора
			c.logger.Debug("Fresher mutation superseded scheduled retry", "fragment", op.TargetFragment)
			c.cancelRetry()
			c.armDebounce()
		case c.currentState() == models.StateOffline:
			// Офлайн: операция ждёт backoff-таймера
		default:
			c.armDebounce()
		}

		return nil
	})
}

// checkReplayable проверяет, что op применима к текущему состоянию с учётом очереди.
func (c *Coordinator) checkReplayable(ctx context.Context, op *models.QueuedOperation) error {
	pending, err := c.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending operations: %w", err)
	}

	payload, _ := models.CloneValue(c.current.Payload).(map[string]any)
	if payload == nil {
		payload = make(map[string]any)
	}
	for _, queued := range pending {
		_ = queued.Apply(payload)
	}
	return op.Apply(payload)
}

// Save немедленно захватывает состояние и отправляет его, отменяя запланированный повтор.
// Временные сетевые ошибки не возвращаются: операция остаётся в очереди.
func (c *Coordinator) Save(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		c.cancelDebounce()
		c.cancelRetry()
		c.dirty = true
		return c.push(ctx)
	})
}

// GoOnline сообщает о восстановлении связи: очередь разбирается сразу, не дожидаясь backoff.
func (c *Coordinator) GoOnline(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		c.cancelRetry()
		return c.runSync(ctx, "online")
	})
}

// Restore заменяет локальное состояние удалённым: pull, восстановление провайдеров,
// очистка очереди. Используется на новом устройстве или для ручной пересинхронизации.
func (c *Coordinator) Restore(ctx context.Context) (*capture.RestoreResult, error) {
	var result *capture.RestoreResult
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.restore(ctx)
		result = res
		return err
	})
	return result, err
}

// ClearConflicts очищает журнал конфликтов, показываемый приложению.
func (c *Coordinator) ClearConflicts() {
	c.updateStatus(func(s *Status) {
		s.Conflicts = nil
	})
}

// RequeueDeadLetters возвращает операции из dead-letter в очередь.
func (c *Coordinator) RequeueDeadLetters(ctx context.Context) (int, error) {
	var n int
	err := c.do(ctx, func(ctx context.Context) error {
		requeued, err := c.store.RequeueDeadLetters(ctx)
		if err != nil {
			return err
		}
		n = requeued
		c.refreshCounts(ctx)
		if n > 0 {
			c.logger.Info("Dead letters requeued", "count", n)
			c.dirty = true
			c.armDebounce()
		}
		return nil
	})
	return n, err
}

// Reset отбрасывает незавершённую работу: результат сетевого вызова, который сейчас
// выполняется, будет проигнорирован, очередь и таймеры очищаются.
func (c *Coordinator) Reset(ctx context.Context) error {
	c.epoch.Add(1)

	return c.do(ctx, func(ctx context.Context) error {
		c.stopTimers()
		if err := c.store.ClearQueue(ctx); err != nil {
			return fmt.Errorf("failed to clear queue: %w", err)
		}

		c.dirty = false
		c.captureFailures = 0
		c.backoff = newBackoff(c.cfg.Backoff)
		c.refreshCounts(ctx)
		c.updateStatus(func(s *Status) {
			s.State = models.StateIdle
			s.Conflicts = nil
			s.LastError = ""
			s.NextRetryIn = 0
		})

		c.logger.Info("Sync state reset")
		return nil
	})
}

func (c *Coordinator) do(ctx context.Context, fn func(ctx context.Context) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}

	select {
	case c.commands <- cmd:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) notify(e pkgapi.ChangeEvent) {
	select {
	case c.notifications <- e:
	default:
		c.logger.Debug("Notification buffer full, dropping event", "version", e.Version)
	}
}

func (c *Coordinator) handleNotification(ctx context.Context, e pkgapi.ChangeEvent) {
	// Истиной считается номер версии, а не порядок прихода уведомлений
	if e.Version <= c.current.Version {
		c.logger.Debug("Ignoring stale change notification", "version", e.Version, "local_version", c.current.Version)
		return
	}

	c.logger.Debug("Remote snapshot changed", "version", e.Version, "device_id", e.DeviceID)
	c.cancelRetry()
	_ = c.runSync(ctx, "notification")
}

// runSync отправляет локальные изменения или, если их нет, подтягивает удалённые.
func (c *Coordinator) runSync(ctx context.Context, reason string) error {
	c.cancelDebounce()
	c.logger.Debug("Sync triggered", "reason", reason)

	if !c.dirty && c.Status().PendingOperationCount == 0 {
		return c.refresh(ctx)
	}
	return c.push(ctx)
}

// push - основной цикл: захват, сохранение, push, при отказе - слияние и повтор.
func (c *Coordinator) push(ctx context.Context) error {
	epoch := c.epoch.Load()
	prev := c.currentState()
	c.setState(models.StateSyncing)

	snap, included, err := c.prepare(ctx)
	if err != nil {
		var captureErr *capture.CaptureError
		if errors.As(err, &captureErr) {
			c.onCaptureFailure(captureErr)
		}
		c.setState(prev)
		return err
	}
	c.captureFailures = 0

	// Долговечность до доставки: снапшот сохраняется до любого сетевого вызова
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Error("Failed to persist snapshot", "error", err)
		c.setState(prev)
		c.scheduleRetry()
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	c.current = snap

	for attempt := 0; ; attempt++ {
		res, err := c.remote.Push(ctx, snap)
		if c.epoch.Load() != epoch {
			c.logger.Info("Discarding push result after reset", "version", snap.Version)
			return ErrReset
		}
		if err != nil {
			return c.onPushFailure(ctx, included, err)
		}
		if res.Accepted {
			return c.onAccepted(ctx, snap, res.NewVersion, included)
		}
		if res.Remote == nil {
			return c.onPushFailure(ctx, included, errors.New("push rejected without remote snapshot"))
		}
		if attempt >= c.cfg.MaxConflictRetries {
			return c.onUnresolved(res.Remote, attempt)
		}

		snap, err = c.resolve(ctx, snap, res.Remote)
		if err != nil {
			c.setState(prev)
			c.scheduleRetry()
			return err
		}
	}
}

// prepare собирает свежий снапшот и воспроизводит на нём очередь в порядке постановки.
func (c *Coordinator) prepare(ctx context.Context) (*models.Snapshot, []*models.QueuedOperation, error) {
	snap, err := c.source.Capture()
	if err != nil {
		return nil, nil, err
	}
	captured := snap.LastModified

	pending, err := c.store.ListPending(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list pending operations: %w", err)
	}

	before := models.CloneValue(snap.Payload)
	included := make([]*models.QueuedOperation, 0, len(pending))
	lastMutation := c.lastMutation
	for _, op := range pending {
		if err := op.Apply(snap.Payload); err != nil {
			c.dropUnreplayable(ctx, op, err)
			continue
		}
		included = append(included, op)
		if op.EnqueuedAt.After(lastMutation) {
			lastMutation = op.EnqueuedAt
		}
	}
	// Провайдеры должны видеть то же, что уйдёт на сервер
	if !reflect.DeepEqual(before, any(snap.Payload)) {
		c.source.Restore(snap)
	}

	snap.Version = c.current.Version
	snap.ConflictLog = c.current.Clone().ConflictLog

	// Время мутации берётся из очереди: после перезапуска lastMutation пуст
	snap.LastModified = c.current.LastModified
	if !reflect.DeepEqual(snap.Payload, c.current.Payload) {
		if lastMutation.After(snap.LastModified) {
			snap.LastModified = lastMutation
		} else {
			snap.LastModified = captured
		}
	}

	return snap, included, nil
}

// dropUnreplayable сразу переносит в dead-letter операцию, которую нельзя применить к состоянию.
func (c *Coordinator) dropUnreplayable(ctx context.Context, op *models.QueuedOperation, cause error) {
	c.logger.Error("Operation cannot be replayed",
		"op_id", op.ID,
		"fragment", op.TargetFragment,
		"entity_id", op.EntityID,
		"error", cause)

	if err := c.store.DeadLetter(ctx, op.ID, cause); err != nil {
		c.logger.Error("Failed to dead-letter operation", "op_id", op.ID, "error", err)
		return
	}

	failed := *op
	failed.LastError = cause.Error()
	failure := &PermanentFailure{Operation: &failed, Err: cause}

	c.refreshCounts(ctx)
	c.updateStatus(func(s *Status) {
		s.LastError = failure.Error()
	})
	c.emit(Event{Type: EventPermanentFailure, Err: failure, Status: c.Status()})
}

func (c *Coordinator) onAccepted(ctx context.Context, snap *models.Snapshot, version int64, included []*models.QueuedOperation) error {
	snap.Version = version
	c.current = snap
	c.base = snap.Clone()

	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Error("Failed to persist accepted snapshot", "error", err)
	}
	if err := c.store.SaveBase(ctx, c.base); err != nil {
		c.logger.Error("Failed to persist base snapshot", "error", err)
	}

	ids := make([]string, 0, len(included))
	for _, op := range included {
		ids = append(ids, op.ID)
	}
	if err := c.store.Ack(ctx, ids...); err != nil {
		c.logger.Error("Failed to ack delivered operations", "error", err)
	}

	now := c.now().UTC()
	if err := c.store.SaveLastSyncedAt(ctx, now); err != nil {
		c.logger.Warn("Failed to save last synced time", "error", err)
	}

	c.dirty = false
	c.cancelRetry()
	c.backoff = newBackoff(c.cfg.Backoff)
	c.refreshCounts(ctx)
	c.updateStatus(func(s *Status) {
		s.State = models.StateIdle
		s.Version = version
		s.LastSyncedAt = now
		s.LastError = ""
		s.NextRetryIn = 0
	})

	c.logger.Info("Snapshot pushed", "version", version, "operations", len(ids))
	return nil
}

// resolve сливает отклонённый локальный снапшот с удалённым и готовит повторный push.
func (c *Coordinator) resolve(ctx context.Context, local, remote *models.Snapshot) (*models.Snapshot, error) {
	c.setState(models.StateConflict)
	c.logger.Info("Push rejected, merging remote snapshot",
		"reason", ErrVersionConflict,
		"local_version", local.Version,
		"remote_version", remote.Version)

	result := c.resolver.MergeWithBase(c.base, local, remote)
	merged := result.Merged
	merged.DeviceID = c.source.DeviceID()

	c.recordConflicts(result.Conflicts)

	if res := c.source.Restore(merged); len(res.Defaulted) > 0 {
		c.logger.Warn("Merged snapshot restored with defaults", "fragments", res.Defaulted)
	}

	c.base = remote.Clone()
	if err := c.store.SaveBase(ctx, c.base); err != nil {
		c.logger.Error("Failed to persist base snapshot", "error", err)
	}
	if err := c.store.SaveSnapshot(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to persist merged snapshot: %w", err)
	}
	c.current = merged

	c.setState(models.StateSyncing)
	return merged, nil
}

func (c *Coordinator) onUnresolved(remote *models.Snapshot, attempts int) error {
	err := fmt.Errorf("%w: push rejected after %d merges (remote version %d)", ErrConflictUnresolved, attempts, remote.Version)
	c.logger.Error("Conflict resolution failed", "error", err)

	c.updateStatus(func(s *Status) {
		s.State = models.StateConflict
		s.LastError = err.Error()
	})
	c.emit(Event{Type: EventConflictUnresolved, Err: err, Status: c.Status()})

	return err
}

func (c *Coordinator) onPushFailure(ctx context.Context, included []*models.QueuedOperation, cause error) error {
	var permanent []error
	for _, op := range included {
		dead, err := c.store.MarkFailed(ctx, op.ID, cause)
		if err != nil {
			if !errors.Is(err, storage.ErrOperationNotFound) {
				c.logger.Error("Failed to record push failure", "op_id", op.ID, "error", err)
			}
			continue
		}
		if dead {
			failed := *op
			failed.RetryCount++
			failed.LastError = cause.Error()
			permanent = append(permanent, &PermanentFailure{Operation: &failed, Err: cause})
		}
	}

	network := errors.Is(cause, api.ErrNetwork)
	state := models.StateIdle
	if network {
		state = models.StateOffline
	}

	c.refreshCounts(ctx)
	c.updateStatus(func(s *Status) {
		s.State = state
		s.LastError = cause.Error()
	})
	c.scheduleRetry()

	for _, err := range permanent {
		c.logger.Error("Operation failed permanently", "error", err)
		c.emit(Event{Type: EventPermanentFailure, Err: err, Status: c.Status()})
	}

	if len(permanent) > 0 {
		return errors.Join(permanent...)
	}
	if network {
		c.logger.Warn("Remote store unreachable, will retry", "error", cause)
		return nil
	}

	c.logger.Warn("Push failed, will retry", "error", cause)
	return cause
}

// refresh подтягивает удалённый снапшот, когда локальных изменений нет.
func (c *Coordinator) refresh(ctx context.Context) error {
	epoch := c.epoch.Load()
	prev := c.currentState()
	c.setState(models.StateSyncing)

	remote, err := c.remote.Pull(ctx)
	if c.epoch.Load() != epoch {
		return ErrReset
	}
	if err != nil {
		return c.onPullFailure(prev, err)
	}

	if remote.Version > c.current.Version {
		c.adoptRemote(ctx, remote)
		c.logger.Info("Fast-forwarded to remote snapshot", "version", remote.Version)
	}

	c.backoff = newBackoff(c.cfg.Backoff)
	c.updateStatus(func(s *Status) {
		s.State = models.StateIdle
		s.LastError = ""
		s.NextRetryIn = 0
	})
	return nil
}

func (c *Coordinator) restore(ctx context.Context) (*capture.RestoreResult, error) {
	epoch := c.epoch.Load()
	prev := c.currentState()
	c.cancelDebounce()
	c.cancelRetry()
	c.setState(models.StateRestoring)

	remote, err := c.remote.Pull(ctx)
	if c.epoch.Load() != epoch {
		return nil, ErrReset
	}
	if err != nil {
		_ = c.onPullFailure(prev, err)
		return nil, fmt.Errorf("failed to pull remote snapshot: %w", err)
	}

	if err := c.store.ClearQueue(ctx); err != nil {
		c.setState(prev)
		return nil, fmt.Errorf("failed to clear queue: %w", err)
	}

	res := c.adoptRemote(ctx, remote)

	c.dirty = false
	c.backoff = newBackoff(c.cfg.Backoff)
	c.refreshCounts(ctx)
	c.updateStatus(func(s *Status) {
		s.State = models.StateIdle
		s.LastError = ""
		s.NextRetryIn = 0
	})

	c.logger.Info("Restored snapshot from remote", "version", remote.Version, "defaulted", res.Defaulted)
	return res, nil
}

// adoptRemote делает удалённый снапшот локальным состоянием и общим предком.
func (c *Coordinator) adoptRemote(ctx context.Context, remote *models.Snapshot) *capture.RestoreResult {
	res := c.source.Restore(remote)

	snap := remote.Clone()
	snap.DeviceID = c.source.DeviceID()
	c.current = snap
	c.base = remote.Clone()

	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		c.logger.Error("Failed to persist remote snapshot", "error", err)
	}
	if err := c.store.SaveBase(ctx, c.base); err != nil {
		c.logger.Error("Failed to persist base snapshot", "error", err)
	}

	now := c.now().UTC()
	if err := c.store.SaveLastSyncedAt(ctx, now); err != nil {
		c.logger.Warn("Failed to save last synced time", "error", err)
	}
	c.updateStatus(func(s *Status) {
		s.Version = snap.Version
		s.LastSyncedAt = now
	})

	return res
}

func (c *Coordinator) onPullFailure(prev models.SyncState, cause error) error {
	if errors.Is(cause, api.ErrNetwork) {
		c.logger.Warn("Remote store unreachable, will retry", "error", cause)
		c.updateStatus(func(s *Status) {
			s.State = models.StateOffline
			s.LastError = cause.Error()
		})
		c.scheduleRetry()
		return nil
	}

	c.logger.Error("Pull failed", "error", cause)
	c.updateStatus(func(s *Status) {
		s.State = prev
		s.LastError = cause.Error()
	})
	return cause
}

func (c *Coordinator) onCaptureFailure(err *capture.CaptureError) {
	c.captureFailures++
	c.logger.Warn("State capture failed, keeping previous snapshot",
		"fragment", err.Fragment,
		"error", err,
		"consecutive", c.captureFailures)

	if c.captureFailures >= captureFailureNotifyThreshold {
		c.updateStatus(func(s *Status) {
			s.LastError = err.Error()
		})
		c.emit(Event{Type: EventCaptureFailed, Err: err, Status: c.Status()})
	}
}

func (c *Coordinator) recordConflicts(records []models.ConflictRecord) {
	if len(records) == 0 {
		return
	}

	for _, rec := range records {
		c.logger.Info("Conflict resolved", "path", rec.Path(), "resolution", rec.Resolution)
	}

	c.updateStatus(func(s *Status) {
		fresh := make([]models.ConflictRecord, 0, len(records)+len(s.Conflicts))
		for i := len(records) - 1; i >= 0; i-- {
			fresh = append(fresh, records[i].Clone())
		}
		fresh = append(fresh, s.Conflicts...)
		if len(fresh) > c.cfg.ConflictHistory {
			fresh = fresh[:c.cfg.ConflictHistory]
		}
		s.Conflicts = fresh
	})

	c.emit(Event{Type: EventConflictsResolved, Conflicts: records, Status: c.Status()})
}

func (c *Coordinator) refreshCounts(ctx context.Context) {
	pending, err := c.store.PendingCount(ctx)
	if err != nil {
		c.logger.Warn("Failed to count pending operations", "error", err)
		return
	}
	letters, err := c.store.ListDeadLetters(ctx)
	if err != nil {
		c.logger.Warn("Failed to list dead letters", "error", err)
		return
	}

	c.updateStatus(func(s *Status) {
		s.PendingOperationCount = pending
		s.DeadLetterCount = len(letters)
	})
}

func (c *Coordinator) currentState() models.SyncState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.State
}

func (c *Coordinator) setState(state models.SyncState) {
	c.updateStatus(func(s *Status) {
		s.State = state
	})
}

func (c *Coordinator) updateStatus(fn func(s *Status)) {
	c.mu.Lock()
	prev := c.status.State
	fn(&c.status)
	st := c.status.clone()
	c.mu.Unlock()

	if st.State != prev {
		c.logger.Debug("Sync state changed", "from", prev, "to", st.State)
		c.emit(Event{Type: EventStatusChanged, Status: st})
	}
}

// emit не блокирует актора: при переполнении событие теряется
func (c *Coordinator) emit(e Event) {
	select {
	case c.events <- e:
	default:
		c.logger.Debug("Event buffer full, dropping event", "type", e.Type)
	}
}

func (c *Coordinator) scheduleRetry() {
	delay, stop := c.backoff.Next()
	if stop {
		return
	}

	c.cancelRetry()
	c.retryTimer = time.NewTimer(delay)
	c.updateStatus(func(s *Status) {
		s.NextRetryIn = delay
	})
	c.logger.Debug("Retry scheduled", "delay", delay)
}

func (c *Coordinator) armDebounce() {
	c.cancelDebounce()
	c.debounce = time.NewTimer(c.cfg.DebounceDelay)
}

func (c *Coordinator) cancelDebounce() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Coordinator) cancelRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
		c.updateStatus(func(s *Status) {
			s.NextRetryIn = 0
		})
	}
}

func (c *Coordinator) stopTimers() {
	c.cancelDebounce()
	c.cancelRetry()
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
