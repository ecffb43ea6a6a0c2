// Package syncer is the realtime sync engine. It owns the connection
// lifecycle, deduplicates server events, and turns them into bus traffic and
// cache refetches. One engine per session.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskwire/taskwire/internal/bus"
	"github.com/taskwire/taskwire/internal/realtime"
	"github.com/taskwire/taskwire/internal/state"
)

const (
	defaultSettleDelay    = time.Second
	defaultThrottleWindow = time.Second
	defaultDedupBucket    = 2 * time.Second

	// The event ledger is bounded: at the cap the oldest half is dropped.
	ledgerCap  = 20
	ledgerKeep = 10
)

// ErrNoSession is returned by Start when nobody is logged in.
var ErrNoSession = errors.New("no active session")

// Transport is the socket connection the engine drives. *realtime.Conn
// satisfies it.
type Transport interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	Events() <-chan realtime.Event
	Connected() bool
}

// Metrics receives engine counters. The zero engine uses a no-op sink.
type Metrics interface {
	RefetchPerformed()
	RefetchThrottled()
	DuplicateDropped()
	ReconnectAttempt()
}

type nopMetrics struct{}

func (nopMetrics) RefetchPerformed() {}
func (nopMetrics) RefetchThrottled() {}
func (nopMetrics) DuplicateDropped() {}
func (nopMetrics) ReconnectAttempt() {}

// Config wires an Engine.
type Config struct {
	Transport     Transport
	Refetcher     Refetcher
	Sessions      *state.SessionStore
	Notifications *state.NotificationStore
	Bus           *bus.Bus
	Logger        *slog.Logger
	Metrics       Metrics

	// SettleDelay is how long Start waits before dialing, letting rapid
	// login/logout churn settle. Zero means 1s.
	SettleDelay time.Duration
	// ThrottleWindow collapses refetches triggered in quick succession.
	// Zero means 1s.
	ThrottleWindow time.Duration
	// DedupBucket is the time window within which a repeated task event is
	// considered a duplicate delivery. Zero means 2s.
	DedupBucket time.Duration
}

// Engine is the sync engine. Start/Stop are safe to call repeatedly.
type Engine struct {
	transport     Transport
	refetcher     Refetcher
	sessions      *state.SessionStore
	notifications *state.NotificationStore
	bus           *bus.Bus
	logger        *slog.Logger
	metrics       Metrics

	settleDelay    time.Duration
	throttleWindow time.Duration
	dedupBucket    time.Duration

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	st          State
	lastNotifID string
	lastRefetch time.Time
	ledger      []string
	seen        map[string]struct{}
}

// New creates an Engine in the Disconnected state.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	throttle := cfg.ThrottleWindow
	if throttle <= 0 {
		throttle = defaultThrottleWindow
	}
	bucket := cfg.DedupBucket
	if bucket <= 0 {
		bucket = defaultDedupBucket
	}
	return &Engine{
		transport:      cfg.Transport,
		refetcher:      cfg.Refetcher,
		sessions:       cfg.Sessions,
		notifications:  cfg.Notifications,
		bus:            cfg.Bus,
		logger:         logger,
		metrics:        metrics,
		settleDelay:    settle,
		throttleWindow: throttle,
		dedupBucket:    bucket,
		st:             StateDisconnected,
		seen:           make(map[string]struct{}),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// Start brings the engine up for the current session. A second Start while
// running is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	sess, ok := e.sessions.Current()
	if !ok {
		e.mu.Unlock()
		return ErrNoSession
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	e.setState(StateConnecting, 0)
	expired := e.bus.Subscribe(bus.TopicSessionExpired)
	go e.run(runCtx, sess, expired)
	return nil
}

// Stop tears the engine down and reports Disconnected. Idempotent.
func (e *Engine) Stop() {
	e.stop(StateDisconnected)
}

func (e *Engine) stop(final State) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.transport.Disconnect()
	e.setState(final, 0)
}

func (e *Engine) run(ctx context.Context, sess state.Session, expired *bus.Subscription) {
	defer e.bus.Unsubscribe(expired)

	// Let login churn settle before dialing.
	select {
	case <-ctx.Done():
		return
	case <-time.After(e.settleDelay):
	}

	if err := e.transport.Connect(ctx, sess.Token); err != nil {
		e.logger.Error("socket connect failed", "error", err)
		e.bus.Publish(bus.TopicToast, bus.Toast{Level: "error", Message: "Realtime connection failed"})
		e.stop(StateDisconnected)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-expired.Ch():
			e.logger.Info("session expired, stopping sync")
			e.stop(StateDisconnected)
			return
		case ev := <-e.transport.Events():
			if stop := e.handle(ctx, ev, sess); stop {
				return
			}
		}
	}
}

// handle processes one socket event. Returns true when the engine should
// shut its loop down.
func (e *Engine) handle(ctx context.Context, ev realtime.Event, sess state.Session) bool {
	switch ev.Kind {
	case realtime.KindConnected:
		e.setState(StateConnected, 0)
		e.refetch(ctx, true)

	case realtime.KindReconnecting:
		e.metrics.ReconnectAttempt()
		e.setState(StateReconnecting, ev.Attempt)

	case realtime.KindReconnectFailed:
		e.bus.Publish(bus.TopicToast, bus.Toast{
			Level:   "error",
			Message: "Connection lost. Restart the client to resync.",
			Sticky:  true,
		})
		e.stop(StateGaveUp)
		return true

	case realtime.KindNotification:
		e.handleNotification(ctx, ev.Notification)

	case realtime.KindTaskCreated, realtime.KindTaskUpdated:
		e.handleTaskEvent(ctx, ev)

	case realtime.KindTaskDeleted:
		e.handleTaskDeleted(ctx, ev.Task, sess)

	case realtime.KindPush:
		e.handlePush(ev.Push)
	}
	return false
}

func (e *Engine) handleNotification(ctx context.Context, p *realtime.NotificationPayload) {
	e.mu.Lock()
	dup := p.ID == e.lastNotifID
	if !dup {
		e.lastNotifID = p.ID
	}
	e.mu.Unlock()
	if dup {
		e.metrics.DuplicateDropped()
		return
	}

	n := state.Notification{
		ID:        p.ID,
		Message:   p.Message,
		Type:      state.NotificationType(p.Type),
		IsRead:    p.IsRead,
		TaskID:    p.TaskID,
		CreatedAt: p.CreatedAt,
	}
	if !e.notifications.Prepend(n) {
		e.metrics.DuplicateDropped()
		return
	}

	e.bus.Publish(bus.TopicNotificationReceived, bus.NotificationEvent{
		ID:      p.ID,
		Message: p.Message,
		Type:    p.Type,
		TaskID:  p.TaskID,
	})
	e.bus.Publish(bus.TopicToast, bus.Toast{Level: "info", Message: p.Message})
	// Invalidate up front so the notification list goes stale even when the
	// refetch below lands inside the throttle window.
	if err := e.refetcher.InvalidateNotifications(ctx); err != nil {
		e.logger.Warn("invalidate notifications failed", "error", err)
	}
	e.refetch(ctx, false)
}

func (e *Engine) handleTaskEvent(ctx context.Context, ev realtime.Event) {
	if !e.recordEvent(string(ev.Kind), ev.Task.TaskID) {
		e.metrics.DuplicateDropped()
		return
	}

	topic := bus.TopicTaskCreated
	if ev.Kind == realtime.KindTaskUpdated {
		topic = bus.TopicTaskUpdated
	}
	e.bus.Publish(topic, bus.TaskEvent{
		TaskID:  ev.Task.TaskID,
		Title:   ev.Task.Title,
		ActorID: ev.Task.ActorID,
	})
	e.refetch(ctx, false)
}

// handleTaskDeleted skips the event ledger: a delete missed is a phantom
// task in the list, so repeated deliveries all reach the refetch path. The
// shared throttle still applies, coalescing bulk-delete storms. The toast is
// suppressed when the current user did the deleting.
func (e *Engine) handleTaskDeleted(ctx context.Context, p *realtime.TaskPayload, sess state.Session) {
	e.bus.Publish(bus.TopicTaskDeleted, bus.TaskEvent{
		TaskID:    p.TaskID,
		Title:     p.Title,
		ActorID:   p.ActorID,
		DeletedBy: p.DeletedBy,
	})
	if p.DeletedBy == "" || p.DeletedBy != sess.Email {
		msg := "A task was deleted"
		if p.Title != "" {
			msg = fmt.Sprintf("Task %q was deleted", p.Title)
		}
		e.bus.Publish(bus.TopicToast, bus.Toast{Level: "info", Message: msg})
	}
	e.refetch(ctx, false)
}

func (e *Engine) handlePush(p *realtime.PushPayload) {
	e.bus.Publish(bus.TopicPushMessage, bus.PushMessage{
		Title:          p.Title,
		Body:           p.Body,
		Type:           p.Data.Type,
		TaskID:         p.Data.TaskID,
		URL:            p.Data.URL,
		NotificationID: p.Data.NotificationID,
	})
}

// recordEvent returns false when the same event key was seen inside the
// current dedup bucket. The ledger is trimmed at the cap so it cannot grow
// with session length.
func (e *Engine) recordEvent(kind, taskID string) bool {
	bucket := time.Now().UnixNano() / int64(e.dedupBucket)
	key := fmt.Sprintf("%s|%s|%d", kind, taskID, bucket)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.seen[key]; ok {
		return false
	}
	if len(e.ledger) >= ledgerCap {
		drop := e.ledger[:len(e.ledger)-ledgerKeep]
		for _, k := range drop {
			delete(e.seen, k)
		}
		e.ledger = append(e.ledger[:0], e.ledger[len(e.ledger)-ledgerKeep:]...)
	}
	e.ledger = append(e.ledger, key)
	e.seen[key] = struct{}{}
	return true
}

// refetch pulls fresh state from the server. Non-forced refetches inside the
// throttle window are dropped; the next event picks the change up anyway.
func (e *Engine) refetch(ctx context.Context, force bool) {
	e.mu.Lock()
	if !force && time.Since(e.lastRefetch) < e.throttleWindow {
		e.mu.Unlock()
		e.metrics.RefetchThrottled()
		return
	}
	e.lastRefetch = time.Now()
	e.mu.Unlock()

	e.metrics.RefetchPerformed()
	if err := e.refetcher.Refetch(ctx); err != nil {
		e.logger.Warn("refetch failed", "error", err)
		return
	}
	if err := e.refetcher.InvalidateNotifications(ctx); err != nil {
		e.logger.Warn("invalidate notifications failed", "error", err)
	}
	e.bus.Publish(bus.TopicSyncRefetched, nil)
}

func (e *Engine) setState(st State, attempt int) {
	e.mu.Lock()
	if e.st == st && attempt == 0 {
		e.mu.Unlock()
		return
	}
	e.st = st
	e.mu.Unlock()

	e.logger.Info("sync state changed", "state", string(st), "attempt", attempt)
	e.bus.Publish(bus.TopicSyncStateChanged, bus.SyncStateEvent{State: string(st), Attempt: attempt})
}
