package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"blockmarket/internal/metrics"
)

const (
	DefaultBaseURL = "https://hoodi.app.ethgas.com"
	APIVersion     = "/api/v1"

	maxResponseSize = 4 << 20
)

// APIError ответ не 2xx, либо 2xx с success=false
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ethgas API error %d: %s", e.Status, e.Message)
}

// Client REST клиент ETHGas. Состояния пользователя не хранит:
// токен передаётся в каждый вызов, один Client на все запросы.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        log.Named("ethgas"),
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ethgas-api",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// 4xx это ответ биржи, а не падение: breaker не открываем
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	return c
}

// envelope общая обёртка {success, message, data}
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) message() string {
	for _, m := range []string{e.Message, e.Error, e.Msg} {
		if m != "" {
			return m
		}
	}
	return ""
}

// request выполняет один вызов. Для публичных эндпоинтов token пустой.
// Если ответ в обёртке, возвращается её data.
func (c *Client) request(ctx context.Context, endpoint, method, path string, query url.Values, token string, body any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, method, path, query, token, body)
	})

	status := "ok"
	if err != nil {
		status = "error"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			status = strconv.Itoa(apiErr.Status)
		}
	}
	metrics.ExchangeAPIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	metrics.ExchangeAPIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.log.Debug("request failed", zap.String("endpoint", endpoint), zap.Duration("took", time.Since(start)), zap.Error(err))
		return nil, err
	}
	c.log.Debug("request completed", zap.String("endpoint", endpoint), zap.Duration("took", time.Since(start)))
	return result.(json.RawMessage), nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, token string, body any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	wrapped := json.Unmarshal(respBody, &env) == nil

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if wrapped && env.message() != "" {
			msg = env.message()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	if wrapped && env.Success != nil {
		if !*env.Success {
			msg := env.message()
			if msg == "" {
				msg = "request was not successful"
			}
			return nil, &APIError{Status: resp.StatusCode, Message: msg}
		}
		if len(env.Data) > 0 {
			return env.Data, nil
		}
	}
	return json.RawMessage(respBody), nil
}

// unwrapList ищет список под любым из ключей, голый массив тоже подходит
func unwrapList(payload json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to parse list: %w", err)
		}
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	for _, key := range keys {
		if inner, ok := obj[key]; ok {
			return unwrapList(inner, keys...)
		}
	}
	if inner, ok := obj["data"]; ok {
		return unwrapList(inner, keys...)
	}
	return nil, fmt.Errorf("no list under %v in response", keys)
}
