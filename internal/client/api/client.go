package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/pkg/api"
)

const (
	pathSnapshot = "/api/v1/snapshot"
	pathChanges  = "/api/v1/snapshot/changes"
	pathHealth   = "/api/v1/health"
)

// ErrNetwork обозначает временную сетевую ошибку: удалённое хранилище недоступно,
// ответило 5xx или 429. Такие ошибки повторяются с backoff.
var ErrNetwork = errors.New("network error")

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError - ответ сервера с кодом вне 2xx
type StatusError struct {
	Message    string
	Body       []byte
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Is reports 5xx and 429 responses as ErrNetwork and 401 as ErrUnauthorized.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// PushResult итог push: либо принят с новой версией, либо отклонён с текущим снапшотом сервера.
type PushResult struct {
	Remote     *models.Snapshot
	NewVersion int64
	Accepted   bool
}

// Client представляет HTTP клиент удалённого хранилища снапшотов
type Client struct {
	httpClient   *http.Client
	dialer       *websocket.Dialer
	logger       *slog.Logger
	baseURL      string
	token        string
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// Option настраивает Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithReconnectBackoff задаёт backoff переподключения канала уведомлений.
func WithReconnectBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.reconnectMin = base
		c.reconnectMax = max
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		reconnectMin: time.Second,
		reconnectMax: time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push отправляет снапшот. Сервер принимает его, только если snap.Version
// совпадает с его текущей версией; иначе возвращается Accepted=false и снапшот сервера.
func (c *Client) Push(ctx context.Context, snap *models.Snapshot) (*PushResult, error) {
	var resp api.PushResponse
	err := c.doRequest(ctx, http.MethodPut, pathSnapshot, api.NewPushRequest(snap), &resp)
	if err == nil {
		return &PushResult{Accepted: true, NewVersion: resp.Version}, nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		var conflict api.ConflictResponse
		if err := json.Unmarshal(statusErr.Body, &conflict); err != nil {
			return nil, fmt.Errorf("failed to decode conflict response: %w", err)
		}
		if conflict.Snapshot == nil {
			return nil, fmt.Errorf("conflict response without snapshot")
		}
		if conflict.Snapshot.Payload == nil {
			conflict.Snapshot.Payload = make(map[string]any)
		}
		return &PushResult{Accepted: false, Remote: conflict.Snapshot}, nil
	}

	return nil, fmt.Errorf("push request failed: %w", err)
}

// Pull возвращает текущий снапшот сервера.
// Для аккаунта без снапшота сервер отдаёт пустой снапшот версии 0.
func (c *Client) Pull(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.doRequest(ctx, http.MethodGet, pathSnapshot, nil, &snap); err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}
	if snap.Payload == nil {
		snap.Payload = make(map[string]any)
	}
	return &snap, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, pathHealth, nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrNetwork, err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: respBody}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
			if statusErr.Message == "" {
				statusErr.Message = errResp.Error
			}
		}
		return statusErr
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
