// Package realtime maintains the single authenticated WebSocket connection to
// the backend and decodes server frames into typed events. Reconnection is
// bounded: after the attempt ceiling the connection is declared dead and the
// caller must prompt the user for a restart.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/taskwire/taskwire/internal/schema"
)

const (
	defaultMaxReconnectAttempts = 10
	defaultBackoffBase          = 500 * time.Millisecond
	defaultBackoffMax           = 5 * time.Second
	dialTimeout                 = 10 * time.Second
)

// Options tunes the connection.
type Options struct {
	// MaxReconnectAttempts bounds automatic reconnection. Zero means 10.
	MaxReconnectAttempts int
	// BackoffBase is the first reconnect delay, doubled per attempt. Zero means 500ms.
	BackoffBase time.Duration
	// BackoffMax caps the reconnect delay. Zero means 5s.
	BackoffMax time.Duration
}

// Conn is the process-wide socket handle. One Conn per session; Connect is
// idempotent while a connection is live.
type Conn struct {
	url       string
	logger    *slog.Logger
	validator *schema.Validator

	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration

	mu     sync.Mutex
	ws     *websocket.Conn
	cancel context.CancelFunc

	events chan Event
}

// New creates a Conn for the given socket URL.
func New(url string, logger *slog.Logger, opts Options) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	maxAttempts := opts.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxReconnectAttempts
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	backoffMax := opts.BackoffMax
	if backoffMax <= 0 {
		backoffMax = defaultBackoffMax
	}
	return &Conn{
		url:         url,
		logger:      logger,
		validator:   validator,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
		events:      make(chan Event, 64),
	}, nil
}

// Events returns the stream of decoded events. The channel is never closed;
// consumers select against their own context.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Connected reports whether a socket is currently live.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Connect dials the socket with the given token. If a connection is already
// live it returns nil without dialing again.
func (c *Conn) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	ws, err := c.dial(ctx, token)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.ws = ws
	c.cancel = cancel
	c.mu.Unlock()

	c.emit(Event{Kind: KindConnected})
	go c.readLoop(runCtx, token)
	return nil
}

func (c *Conn) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	ws, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + token},
		},
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Disconnect tears down the connection and nils the handle, so a later
// Connect is guaranteed fresh state instead of a stale destroyed socket.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.ws != nil {
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.ws = nil
	}
}

// readLoop reads frames until the context is canceled, reconnecting with
// bounded backoff on read failure.
func (c *Conn) readLoop(ctx context.Context, token string) {
	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws == nil {
			return
		}

		var f frame
		err := wsjson.Read(ctx, ws, &f)
		if err == nil {
			c.dispatch(f)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("socket read failed", "error", err)
		if !c.reconnect(ctx, token) {
			return
		}
	}
}

// reconnect attempts to re-establish the socket. Returns false when the
// attempt ceiling is reached or the context is gone.
func (c *Conn) reconnect(ctx context.Context, token string) bool {
	c.mu.Lock()
	if c.ws != nil {
		_ = c.ws.Close(websocket.StatusAbnormalClosure, "reconnecting")
		c.ws = nil
	}
	c.mu.Unlock()

	delay := c.backoffBase
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		ws, err := c.dial(ctx, token)
		if err == nil {
			c.mu.Lock()
			c.ws = ws
			c.mu.Unlock()
			c.emit(Event{Kind: KindConnected})
			c.logger.Info("socket reconnected", "attempt", attempt)
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		c.emit(Event{Kind: KindReconnecting, Attempt: attempt, Err: err})
		c.logger.Warn("socket reconnect failed", "attempt", attempt, "error", err)

		delay *= 2
		if delay > c.backoffMax {
			delay = c.backoffMax
		}
	}

	c.emit(Event{Kind: KindReconnectFailed})
	c.mu.Lock()
	c.ws = nil
	c.mu.Unlock()
	return false
}

// dispatch decodes one frame into a typed event. Payloads are schema-checked
// first; a frame that fails validation is logged and dropped.
func (c *Conn) dispatch(f frame) {
	event, err := c.decode(f)
	if err != nil {
		c.logger.Warn("dropping socket frame", "event", f.Event, "error", err)
		return
	}
	c.emit(event)
}

func (c *Conn) decode(f frame) (Event, error) {
	switch EventKind(f.Event) {
	case KindNotification:
		if err := c.validator.ValidateNotification(f.Data); err != nil {
			return Event{}, err
		}
		var p NotificationPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return Event{}, err
		}
		return Event{Kind: KindNotification, Notification: &p}, nil

	case KindTaskCreated, KindTaskUpdated, KindTaskDeleted:
		if err := c.validator.ValidateTaskEvent(f.Data); err != nil {
			return Event{}, err
		}
		var p TaskPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventKind(f.Event), Task: &p}, nil

	case KindPush:
		if err := c.validator.ValidatePush(f.Data); err != nil {
			return Event{}, err
		}
		var p PushPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return Event{}, err
		}
		return Event{Kind: KindPush, Push: &p}, nil

	default:
		return Event{}, errUnknownEvent{name: f.Event}
	}
}

// emit is non-blocking; a full consumer buffer drops the event. The sync
// engine refetches from the server anyway, so a dropped event costs at most
// one throttle window of staleness.
func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping", "kind", ev.Kind)
	}
}
