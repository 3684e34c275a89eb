package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/statesync/pkg/api"
)

// Subscribe держит websocket-подписку на уведомления об изменениях и вызывает handler
// для каждого события. Соединение переустанавливается с экспоненциальным backoff.
// Доставка at-least-once и без гарантий порядка: события - только подсказка "пора сделать pull".
// Subscribe блокируется до отмены ctx.
func (c *Client) Subscribe(ctx context.Context, handler func(api.ChangeEvent)) error {
	backoff := c.reconnectBackoff()

	for {
		connected, err := c.listen(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			// Соединение было установлено - начинаем backoff заново
			backoff = c.reconnectBackoff()
		}

		delay, stop := backoff.Next()
		if stop {
			return fmt.Errorf("change subscription gave up: %w", err)
		}
		c.logger.Debug("Change subscription lost, reconnecting", "error", err, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) reconnectBackoff() retry.Backoff {
	b := retry.NewExponential(c.reconnectMin)
	b = retry.WithCappedDuration(c.reconnectMax, b)
	return retry.WithJitterPercent(10, b)
}

// listen читает события из одного соединения до ошибки или отмены ctx.
func (c *Client) listen(ctx context.Context, handler func(api.ChangeEvent)) (bool, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(pathChanges), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrUnauthorized
		}
		return false, fmt.Errorf("%w: dial changes: %w", ErrNetwork, err)
	}
	defer conn.Close()

	c.logger.Debug("Subscribed to remote changes")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var event api.ChangeEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, context.Canceled) {
				return true, nil
			}
			return true, fmt.Errorf("%w: read change event: %w", ErrNetwork, err)
		}
		handler(event)
	}
}

func (c *Client) wsURL(path string) string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + path
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + path
	default:
		return c.baseURL + path
	}
}
