package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iudanet/statesync/pkg/api"
)

// DefaultSubscriberBuffer размер буфера канала одного подписчика
const DefaultSubscriberBuffer = 8

var _ Notifier = (*Hub)(nil)

// Hub - рассылка в пределах одного процесса
type Hub struct {
	subscribers map[string]map[chan api.ChangeEvent]struct{}
	logger      *slog.Logger
	buffer      int
	mu          sync.RWMutex
}

// NewHub создает Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan api.ChangeEvent]struct{}),
		logger:      logger,
		buffer:      DefaultSubscriberBuffer,
	}
}

// Publish рассылает событие всем подписчикам аккаунта без блокировки
func (h *Hub) Publish(_ context.Context, accountID string, event api.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[accountID] {
		select {
		case ch <- event:
		default:
			h.logger.Debug("Subscriber lagging, dropping change event",
				"account_id", accountID,
				"version", event.Version)
		}
	}
	return nil
}

// Subscribe регистрирует подписчика аккаунта
func (h *Hub) Subscribe(accountID string) (<-chan api.ChangeEvent, func()) {
	ch := make(chan api.ChangeEvent, h.buffer)

	h.mu.Lock()
	subs, ok := h.subscribers[accountID]
	if !ok {
		subs = make(map[chan api.ChangeEvent]struct{})
		h.subscribers[accountID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[accountID], ch)
			if len(h.subscribers[accountID]) == 0 {
				delete(h.subscribers, accountID)
			}
			close(ch)
		})
	}

	return ch, cancel
}

// SubscriberCount returns the number of live subscribers of the account.
func (h *Hub) SubscriberCount(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[accountID])
}
