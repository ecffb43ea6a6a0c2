// Package api is the REST client for the task platform backend. It owns
// bearer-token injection, bounded retry on transport failures, and the
// session-probe 401 teardown.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taskwire/taskwire/internal/bus"
	"github.com/taskwire/taskwire/internal/shared"
	"github.com/taskwire/taskwire/internal/state"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 2 * time.Second

	// teardownGuardWindow suppresses re-entrant session teardowns when several
	// in-flight requests fail 401 at once.
	teardownGuardWindow = 2 * time.Second

	probePath = "/auth/me"
	loginPath = "/auth/login"
)

// Config holds the dependencies for the API client.
type Config struct {
	BaseURL  string
	Sessions *state.SessionStore
	Bus      *bus.Bus
	Logger   *slog.Logger

	// Timeout is the per-request deadline. Zero means 30s.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after a transport
	// failure. Zero means 2. Negative disables retries.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts. Zero means 2s.
	RetryDelay time.Duration

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// Client issues authenticated JSON requests against the backend.
type Client struct {
	baseURL    string
	http       *http.Client
	sessions   *state.SessionStore
	bus        *bus.Bus
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration

	teardownMu sync.Mutex
	teardownAt time.Time
}

// New creates a Client from the given config.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       httpClient,
		sessions:   cfg.Sessions,
		bus:        cfg.Bus,
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

type callOpts struct {
	// noRetry disables transport retries. Login fails fast and visibly
	// instead of multiplying a slow request.
	noRetry bool
}

// envelope is the backend's uniform response wrapper.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
}

// do issues one JSON request, retrying transport failures, and decodes the
// enveloped response into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any, opts callOpts) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	traceID := shared.TraceID(ctx)
	if traceID == "" {
		traceID = shared.NewTraceID()
		ctx = shared.WithTraceID(ctx, traceID)
	}

	attempts := 1
	if !opts.noRetry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying request",
				"method", method, "path", path, "attempt", attempt,
				"trace_id", traceID, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Trace-Id", traceID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.sessions.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport-level failure (network, DNS, timeout). Retryable
			// unless the caller's context is gone.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		return c.handleResponse(resp, path, out)
	}

	return fmt.Errorf("%w: %v", ErrServerUnavailable, lastErr)
}

// handleResponse decodes a completed HTTP exchange. HTTP-level errors are
// never retried: the server spoke, we listen.
func (c *Client) handleResponse(resp *http.Response, path string, out any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(path)
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		if eb.Message == "" {
			eb.Message = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: eb.Message}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("response envelope missing data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// handleUnauthorized tears down the session, but only when the session probe
// itself came back 401. A 401 from any other endpoint is a business error
// (wrong password, revoked permission) and must not log the user out.
func (c *Client) handleUnauthorized(path string) {
	if path != probePath {
		return
	}
	c.teardownMu.Lock()
	defer c.teardownMu.Unlock()
	if time.Since(c.teardownAt) < teardownGuardWindow {
		return
	}
	c.teardownAt = time.Now()

	if err := c.sessions.Clear(); err != nil {
		c.logger.Error("session teardown: clear failed", "error", err)
	}
	c.logger.Info("session invalidated by probe 401")
	if c.bus != nil {
		c.bus.Publish(bus.TopicSessionExpired, nil)
	}
}
