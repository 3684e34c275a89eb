package notify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/statesync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_DeliversToAccountSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	ctx := context.Background()

	first, cancelFirst := hub.Subscribe("account-1")
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe("account-1")
	defer cancelSecond()
	other, cancelOther := hub.Subscribe("account-2")
	defer cancelOther()

	require.NoError(t, hub.Publish(ctx, "account-1", api.ChangeEvent{DeviceID: "d1", Version: 4}))

	assert.Equal(t, int64(4), (<-first).Version)
	assert.Equal(t, int64(4), (<-second).Version)

	select {
	case e := <-other:
		t.Fatalf("unexpected event for another account: %+v", e)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(testLogger())
	ch, cancel := hub.Subscribe("account-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for v := int64(1); v <= DefaultSubscriberBuffer*3; v++ {
			_ = hub.Publish(context.Background(), "account-1", api.ChangeEvent{Version: v})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	assert.Len(t, ch, DefaultSubscriberBuffer)
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub(testLogger())

	ch, cancel := hub.Subscribe("account-1")
	assert.Equal(t, 1, hub.SubscriberCount("account-1"))

	cancel()
	cancel()

	assert.Equal(t, 0, hub.SubscriberCount("account-1"))
	_, ok := <-ch
	assert.False(t, ok)

	assert.NoError(t, hub.Publish(context.Background(), "account-1", api.ChangeEvent{Version: 1}))
}

// Требует живой Redis: STATESYNC_TEST_REDIS_ADDR=localhost:6379
func TestRedisNotifier_FanOut(t *testing.T) {
	addr := os.Getenv("STATESYNC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STATESYNC_TEST_REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Два экземпляра сервера, общий Redis
	publisher := NewRedisNotifier(client, testLogger())
	receiver := NewRedisNotifier(client, testLogger())

	go func() { _ = receiver.Run(ctx) }()

	ch, unsubscribe := receiver.Subscribe("account-1")
	defer unsubscribe()

	// Подписка в Redis устанавливается асинхронно
	require.Eventually(t, func() bool {
		_ = publisher.Publish(ctx, "account-1", api.ChangeEvent{DeviceID: "d1", Version: 9})
		select {
		case e := <-ch:
			return e.Version == 9
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)
}
