package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind discriminates the tagged union of socket events.
type EventKind string

const (
	// Server-pushed domain events.
	KindNotification EventKind = "notification"
	KindTaskCreated  EventKind = "task-created"
	KindTaskUpdated  EventKind = "task-updated"
	KindTaskDeleted  EventKind = "task-deleted"
	KindPush         EventKind = "push"

	// Connection lifecycle, synthesized locally.
	KindConnected       EventKind = "connected"
	KindReconnecting    EventKind = "reconnecting"
	KindReconnectFailed EventKind = "reconnect-failed"
)

// NotificationPayload is the wire shape of a notification event.
type NotificationPayload struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskPayload is the wire shape of the task-created/updated/deleted events.
type TaskPayload struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	DeletedBy string `json:"deleted_by,omitempty"`
}

// PushData is the structured payload carried by a push message.
type PushData struct {
	Type           string `json:"type"`
	TaskID         string `json:"task_id,omitempty"`
	URL            string `json:"url,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// PushPayload is the wire shape of a push event delivered over the socket
// while the client is in the foreground.
type PushPayload struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Data  PushData `json:"data"`
}

// Event is one decoded socket event. Exactly one payload pointer is non-nil
// for domain events; lifecycle events carry Attempt/Err instead.
type Event struct {
	Kind         EventKind
	Notification *NotificationPayload
	Task         *TaskPayload
	Push         *PushPayload

	// Attempt is the reconnect attempt number for KindReconnecting.
	Attempt int
	// Err is the cause for KindReconnecting and KindReconnectFailed.
	Err error
}

// frame is the raw envelope every server frame arrives in.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// errUnknownEvent marks frames whose event name the client does not handle.
type errUnknownEvent struct{ name string }

func (e errUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event %q", e.name)
}
