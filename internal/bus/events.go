package bus

// Server-pushed task event topics.
const (
	TopicTaskCreated = "task.created"
	TopicTaskUpdated = "task.updated"
	TopicTaskDeleted = "task.deleted"
)

// Notification topics.
const (
	TopicNotificationReceived = "notification.received"
)

// Session lifecycle topics.
const (
	TopicSessionStarted = "session.started"
	TopicSessionExpired = "session.expired"
)

// Sync engine topics.
const (
	TopicSyncStateChanged = "sync.state_changed"
	TopicSyncRefetched    = "sync.refetched"
)

// UI and delivery topics.
const (
	TopicToast       = "ui.toast"
	TopicPushMessage = "push.message"
)

// TaskEvent is published when the server reports a task change.
type TaskEvent struct {
	TaskID    string // Task ID
	Title     string // Task title, when the server includes it
	ActorID   string // User who performed the change
	DeletedBy string // Email of the deleting user (task.deleted only)
}

// NotificationEvent is published when a new notification record arrives.
type NotificationEvent struct {
	ID      string // Notification ID
	Message string // Human-readable message
	Type    string // TASK_ASSIGNED, TASK_UPDATED, TASK_COMPLETED, TASK_OVERDUE or other
	TaskID  string // Related task, if any
}

// SyncStateEvent is published on every sync engine state transition.
type SyncStateEvent struct {
	State   string // disconnected, connecting, connected, reconnecting, gave_up
	Attempt int    // reconnect attempt count, 0 outside reconnecting
}

// Toast is a transient user-facing message.
type Toast struct {
	Level   string // "info", "warn", or "error"
	Message string
	Sticky  bool // sticky toasts stay until the user acts (e.g. "restart required")
}

// PushMessage is a push payload delivered while the client is running.
type PushMessage struct {
	Title          string
	Body           string
	Type           string // notification type tag driving presentation
	TaskID         string
	URL            string
	NotificationID string
}
