package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskwire/taskwire/internal/bus"
	"github.com/taskwire/taskwire/internal/realtime"
	"github.com/taskwire/taskwire/internal/state"
)

type fakeTransport struct {
	mu          sync.Mutex
	events      chan realtime.Event
	connected   bool
	connects    int
	disconnects int
	token       string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan realtime.Event, 32)}
}

func (f *fakeTransport) Connect(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.connects++
	f.token = token
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakeTransport) Events() <-chan realtime.Event { return f.events }

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) push(ev realtime.Event) { f.events <- ev }

type fakeRefetcher struct {
	refetches   int64
	invalidates int64
}

func (f *fakeRefetcher) Refetch(ctx context.Context) error {
	atomic.AddInt64(&f.refetches, 1)
	return nil
}

func (f *fakeRefetcher) InvalidateNotifications(ctx context.Context) error {
	atomic.AddInt64(&f.invalidates, 1)
	return nil
}

func (f *fakeRefetcher) count() int64 { return atomic.LoadInt64(&f.refetches) }

type testRig struct {
	engine    *Engine
	transport *fakeTransport
	refetcher *fakeRefetcher
	bus       *bus.Bus
	notifs    *state.NotificationStore
	sessions  *state.SessionStore
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	sessions, err := state.NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := sessions.Set(state.Session{
		UserID: "u-1", Email: "me@example.com", Role: "member", Token: "tok-1",
	}); err != nil {
		t.Fatal(err)
	}

	rig := &testRig{
		transport: newFakeTransport(),
		refetcher: &fakeRefetcher{},
		bus:       bus.New(),
		notifs:    state.NewNotificationStore(),
		sessions:  sessions,
	}
	rig.engine = New(Config{
		Transport:      rig.transport,
		Refetcher:      rig.refetcher,
		Sessions:       sessions,
		Notifications:  rig.notifs,
		Bus:            rig.bus,
		SettleDelay:    5 * time.Millisecond,
		ThrottleWindow: 150 * time.Millisecond,
		DedupBucket:    time.Hour,
	})
	return rig
}

// start brings the rig up and waits until the transport is dialed and the
// engine has processed the connected event.
func (r *testRig) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(r.engine.Stop)
	if err := r.engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntil(t, func() bool { return r.transport.Connected() })
	r.transport.push(realtime.Event{Kind: realtime.KindConnected})
	waitUntil(t, func() bool { return r.engine.State() == StateConnected })
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func waitTopic(t *testing.T, sub *bus.Subscription, topic string) bus.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sub.Ch():
			if ev.Topic == topic {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", topic)
		}
	}
}

func TestEngine_ConnectRefetchesAndReportsState(t *testing.T) {
	rig := newTestRig(t)
	states := rig.bus.Subscribe(bus.TopicSyncStateChanged)

	rig.start(t)

	if got := rig.transport.token; got != "tok-1" {
		t.Fatalf("dialed with token %q, want tok-1", got)
	}
	waitUntil(t, func() bool { return rig.refetcher.count() == 1 })

	sawConnecting, sawConnected := false, false
	for i := 0; i < 2; i++ {
		ev := <-states.Ch()
		switch ev.Payload.(bus.SyncStateEvent).State {
		case string(StateConnecting):
			sawConnecting = true
		case string(StateConnected):
			sawConnected = true
		}
	}
	if !sawConnecting || !sawConnected {
		t.Fatalf("missing state transitions: connecting=%v connected=%v", sawConnecting, sawConnected)
	}
}

func TestEngine_StartIsIdempotent(t *testing.T) {
	rig := newTestRig(t)
	rig.start(t)

	if err := rig.engine.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := rig.transport.connects; got != 1 {
		t.Fatalf("transport dialed %d times, want 1", got)
	}
}

func TestEngine_StartWithoutSession(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.sessions.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := rig.engine.Start(context.Background()); err != ErrNoSession {
		t.Fatalf("Start = %v, want ErrNoSession", err)
	}
}

func TestEngine_NotificationDedupByLastSeenID(t *testing.T) {
	rig := newTestRig(t)
	received := rig.bus.Subscribe(bus.TopicNotificationReceived)
	rig.start(t)

	payload := realtime.NotificationPayload{ID: "n-1", Message: "task assigned", Type: "TASK_ASSIGNED"}
	rig.transport.push(realtime.Event{Kind: realtime.KindNotification, Notification: &payload})
	rig.transport.push(realtime.Event{Kind: realtime.KindNotification, Notification: &payload})

	ev := waitTopic(t, received, bus.TopicNotificationReceived)
	if ev.Payload.(bus.NotificationEvent).ID != "n-1" {
		t.Fatalf("payload = %+v", ev.Payload)
	}
	// The duplicate must not show up as a second record or a second event.
	time.Sleep(50 * time.Millisecond)
	if got := rig.notifs.Len(); got != 1 {
		t.Fatalf("store has %d records, want 1", got)
	}
	select {
	case ev := <-received.Ch():
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestEngine_TaskEventDedupWithinBucket(t *testing.T) {
	rig := newTestRig(t)
	updated := rig.bus.Subscribe(bus.TopicTaskUpdated)
	rig.start(t)

	task := realtime.TaskPayload{TaskID: "t-1", Title: "Write report"}
	rig.transport.push(realtime.Event{Kind: realtime.KindTaskUpdated, Task: &task})
	rig.transport.push(realtime.Event{Kind: realtime.KindTaskUpdated, Task: &task})

	waitTopic(t, updated, bus.TopicTaskUpdated)
	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-updated.Ch():
		t.Fatalf("duplicate delivery published: %+v", ev)
	default:
	}
}

func TestEngine_RefetchThrottled(t *testing.T) {
	rig := newTestRig(t)
	rig.start(t)
	waitUntil(t, func() bool { return rig.refetcher.count() == 1 })

	// Inside the throttle window right after the connect refetch.
	rig.transport.push(realtime.Event{Kind: realtime.KindTaskUpdated, Task: &realtime.TaskPayload{TaskID: "t-1"}})
	time.Sleep(50 * time.Millisecond)
	if got := rig.refetcher.count(); got != 1 {
		t.Fatalf("refetches = %d, want 1 (throttled)", got)
	}

	// After the window a fresh event refetches again.
	time.Sleep(150 * time.Millisecond)
	rig.transport.push(realtime.Event{Kind: realtime.KindTaskUpdated, Task: &realtime.TaskPayload{TaskID: "t-2"}})
	waitUntil(t, func() bool { return rig.refetcher.count() == 2 })
}

func TestEngine_NotificationTriggersRefetch(t *testing.T) {
	rig := newTestRig(t)
	rig.start(t)
	waitUntil(t, func() bool { return rig.refetcher.count() == 1 })

	// Past the throttle window a notification refetches task queries too,
	// not just the notification list.
	time.Sleep(200 * time.Millisecond)
	rig.transport.push(realtime.Event{
		Kind:         realtime.KindNotification,
		Notification: &realtime.NotificationPayload{ID: "n-1", Message: "task assigned", Type: "TASK_ASSIGNED"},
	})
	waitUntil(t, func() bool { return rig.refetcher.count() == 2 })
}

func TestEngine_NotificationInvalidatesEvenWhenThrottled(t *testing.T) {
	rig := newTestRig(t)
	rig.start(t)
	waitUntil(t, func() bool { return rig.refetcher.count() == 1 })
	before := atomic.LoadInt64(&rig.refetcher.invalidates)

	// Inside the throttle window: the refetch is dropped, the staleness
	// marking is not.
	rig.transport.push(realtime.Event{
		Kind:         realtime.KindNotification,
		Notification: &realtime.NotificationPayload{ID: "n-1", Message: "task assigned", Type: "TASK_ASSIGNED"},
	})
	waitUntil(t, func() bool { return atomic.LoadInt64(&rig.refetcher.invalidates) > before })
	if got := rig.refetcher.count(); got != 1 {
		t.Fatalf("refetches = %d, want 1 (throttled)", got)
	}
}

func TestEngine_TaskDeletedSkipsDedupSharesThrottle(t *testing.T) {
	rig := newTestRig(t)
	rig.start(t)
	waitUntil(t, func() bool { return rig.refetcher.count() == 1 })

	// Two deletes inside one throttle window coalesce into the connect
	// refetch; a bulk delete must not refetch per event.
	del := realtime.Event{
		Kind: realtime.KindTaskDeleted,
		Task: &realtime.TaskPayload{TaskID: "t-1", DeletedBy: "other@example.com"},
	}
	rig.transport.push(del)
	rig.transport.push(del)
	time.Sleep(50 * time.Millisecond)
	if got := rig.refetcher.count(); got != 1 {
		t.Fatalf("refetches = %d inside one throttle window, want 1", got)
	}

	// Outside the window the identical delete refetches again: deletes skip
	// the event ledger, so a repeat delivery is never treated as a duplicate.
	time.Sleep(150 * time.Millisecond)
	rig.transport.push(del)
	waitUntil(t, func() bool { return rig.refetcher.count() == 2 })
	time.Sleep(150 * time.Millisecond)
	rig.transport.push(del)
	waitUntil(t, func() bool { return rig.refetcher.count() == 3 })
}

func TestEngine_SelfDeleteSuppressesToast(t *testing.T) {
	rig := newTestRig(t)
	toasts := rig.bus.Subscribe(bus.TopicToast)
	deleted := rig.bus.Subscribe(bus.TopicTaskDeleted)
	rig.start(t)

	rig.transport.push(realtime.Event{
		Kind: realtime.KindTaskDeleted,
		Task: &realtime.TaskPayload{TaskID: "t-1", Title: "Mine", DeletedBy: "me@example.com"},
	})
	waitTopic(t, deleted, bus.TopicTaskDeleted)
	time.Sleep(50 * time.Millisecond)
	select {
	case ev := <-toasts.Ch():
		t.Fatalf("toast published for self-delete: %+v", ev.Payload)
	default:
	}

	rig.transport.push(realtime.Event{
		Kind: realtime.KindTaskDeleted,
		Task: &realtime.TaskPayload{TaskID: "t-2", Title: "Theirs", DeletedBy: "other@example.com"},
	})
	ev := waitTopic(t, toasts, bus.TopicToast)
	toast := ev.Payload.(bus.Toast)
	if toast.Message != `Task "Theirs" was deleted` {
		t.Fatalf("toast = %q", toast.Message)
	}
}

func TestEngine_PushEventFansOut(t *testing.T) {
	rig := newTestRig(t)
	pushes := rig.bus.Subscribe(bus.TopicPushMessage)
	rig.start(t)

	rig.transport.push(realtime.Event{
		Kind: realtime.KindPush,
		Push: &realtime.PushPayload{
			Title: "Task assigned",
			Body:  "Write report",
			Data:  realtime.PushData{Type: "TASK_ASSIGNED", TaskID: "t-1", URL: "/tasks/t-1"},
		},
	})

	ev := waitTopic(t, pushes, bus.TopicPushMessage)
	msg := ev.Payload.(bus.PushMessage)
	if msg.Title != "Task assigned" || msg.TaskID != "t-1" || msg.Type != "TASK_ASSIGNED" {
		t.Fatalf("push message = %+v", msg)
	}
}

func TestEngine_GiveUpIsStickyAndStops(t *testing.T) {
	rig := newTestRig(t)
	toasts := rig.bus.Subscribe(bus.TopicToast)
	rig.start(t)

	rig.transport.push(realtime.Event{Kind: realtime.KindReconnectFailed})

	waitUntil(t, func() bool { return rig.engine.State() == StateGaveUp })
	ev := waitTopic(t, toasts, bus.TopicToast)
	toast := ev.Payload.(bus.Toast)
	if !toast.Sticky || toast.Level != "error" {
		t.Fatalf("toast = %+v, want sticky error", toast)
	}
	if rig.transport.Connected() {
		t.Fatal("transport still connected after giving up")
	}
}

func TestEngine_SessionExpiredStopsSync(t *testing.T) {
	rig := newTestRig(t)
	rig.start(t)

	rig.bus.Publish(bus.TopicSessionExpired, nil)

	waitUntil(t, func() bool { return rig.engine.State() == StateDisconnected })
	if rig.transport.Connected() {
		t.Fatal("transport still connected after session expiry")
	}
}

func TestEngine_LedgerStaysBounded(t *testing.T) {
	e := New(Config{DedupBucket: time.Hour})
	for i := 0; i < 3*ledgerCap; i++ {
		if !e.recordEvent("task-updated", fmt.Sprintf("t-%d", i)) {
			t.Fatalf("fresh event %d reported as duplicate", i)
		}
		if len(e.ledger) > ledgerCap {
			t.Fatalf("ledger grew to %d, cap is %d", len(e.ledger), ledgerCap)
		}
	}
	// The most recent entry is still known after trims.
	if e.recordEvent("task-updated", fmt.Sprintf("t-%d", 3*ledgerCap-1)) {
		t.Fatal("recent duplicate not detected")
	}
}
