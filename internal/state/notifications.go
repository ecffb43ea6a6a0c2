package state

import (
	"sync"
	"time"
)

// NotificationType tags a notification record. Unknown server values pass
// through unchanged and render with the generic presentation.
type NotificationType string

const (
	TypeTaskAssigned  NotificationType = "TASK_ASSIGNED"
	TypeTaskUpdated   NotificationType = "TASK_UPDATED"
	TypeTaskCompleted NotificationType = "TASK_COMPLETED"
	TypeTaskOverdue   NotificationType = "TASK_OVERDUE"
)

// Notification is one record in the client's notification list.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	TaskID    string           `json:"task_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationStore holds the ordered notification list, newest first.
// The unread count is derived, never stored, so it cannot drift from the
// records themselves.
type NotificationStore struct {
	mu    sync.RWMutex
	items []Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

// Prepend inserts a record at the head of the list. Returns false without
// modifying anything if a record with the same ID is already present, so a
// duplicate server delivery cannot double-count.
func (s *NotificationStore) Prepend(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.ID == n.ID {
			return false
		}
	}
	s.items = append([]Notification{n}, s.items...)
	return true
}

// Replace swaps the whole list, e.g. after the initial REST fetch.
func (s *NotificationStore) Replace(items []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Notification(nil), items...)
}

// MarkRead flips a record to read. Returns false if the ID is unknown.
func (s *NotificationStore) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
			return true
		}
	}
	return false
}

// MarkAllRead flips every record to read.
func (s *NotificationStore) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].IsRead = true
	}
}

// Delete removes a record. Returns false if the ID is unknown.
func (s *NotificationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every record.
func (s *NotificationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// List returns a copy of the records, newest first.
func (s *NotificationStore) List() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.items...)
}

// UnreadCount counts records with IsRead == false.
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Len returns the number of records.
func (s *NotificationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
