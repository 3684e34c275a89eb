package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/statesync/pkg/api"
)

const channelPrefix = "statesync:changes:"

var _ Notifier = (*RedisNotifier)(nil)

// RedisNotifier разносит события между экземплярами сервера через Redis pub/sub.
// Локальные подписчики обслуживаются встроенным Hub.
type RedisNotifier struct {
	client *redis.Client
	local  *Hub
	logger *slog.Logger
}

// NewRedisNotifier создает notifier поверх готового клиента Redis
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		local:  NewHub(logger),
		logger: logger,
	}
}

// Publish отправляет событие в Redis; локальные подписчики получат его через Run
func (n *RedisNotifier) Publish(ctx context.Context, accountID string, event api.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := n.client.Publish(ctx, channelPrefix+accountID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe регистрирует локального подписчика
func (n *RedisNotifier) Subscribe(accountID string) (<-chan api.ChangeEvent, func()) {
	return n.local.Subscribe(accountID)
}

// Run читает события всех аккаунтов из Redis и передаёт их локальным подписчикам до отмены ctx
func (n *RedisNotifier) Run(ctx context.Context) error {
	pubsub := n.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// Дожидаемся подтверждения подписки, чтобы не потерять первые события
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to change events: %w", err)
	}

	n.logger.Info("Subscribed to Redis change events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event api.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				n.logger.Warn("Malformed change event", "channel", msg.Channel, "error", err)
				continue
			}

			accountID := strings.TrimPrefix(msg.Channel, channelPrefix)
			_ = n.local.Publish(ctx, accountID, event)
		}
	}
}
