package state

import (
	"fmt"
	"testing"
	"time"
)

func TestNotificationStore_PrependAndUnread(t *testing.T) {
	s := NewNotificationStore()

	ok := s.Prepend(Notification{ID: "n-1", Message: "assigned", Type: TypeTaskAssigned, CreatedAt: time.Now()})
	if !ok {
		t.Fatal("first prepend rejected")
	}
	if s.UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1", s.UnreadCount())
	}

	// Duplicate delivery of the same record must be a no-op.
	if s.Prepend(Notification{ID: "n-1", Message: "assigned"}) {
		t.Fatal("duplicate prepend accepted")
	}
	if s.Len() != 1 || s.UnreadCount() != 1 {
		t.Fatalf("len = %d unread = %d after duplicate, want 1/1", s.Len(), s.UnreadCount())
	}

	// Newest first.
	s.Prepend(Notification{ID: "n-2", Message: "updated", Type: TypeTaskUpdated})
	list := s.List()
	if list[0].ID != "n-2" || list[1].ID != "n-1" {
		t.Fatalf("order = %s,%s, want n-2,n-1", list[0].ID, list[1].ID)
	}
}

func TestNotificationStore_AlreadyReadDoesNotCount(t *testing.T) {
	s := NewNotificationStore()
	s.Prepend(Notification{ID: "n-1", IsRead: true})
	if s.UnreadCount() != 0 {
		t.Fatalf("unread = %d, want 0", s.UnreadCount())
	}
}

func TestNotificationStore_UnreadCountInvariant(t *testing.T) {
	s := NewNotificationStore()
	for i := 0; i < 5; i++ {
		s.Prepend(Notification{ID: fmt.Sprintf("n-%d", i)})
	}

	// unreadCount must always equal the count of records with IsRead == false.
	check := func() {
		t.Helper()
		want := 0
		for _, n := range s.List() {
			if !n.IsRead {
				want++
			}
		}
		if got := s.UnreadCount(); got != want {
			t.Fatalf("unread = %d, records say %d", got, want)
		}
	}
	check()

	if !s.MarkRead("n-2") {
		t.Fatal("MarkRead n-2 failed")
	}
	check()
	if s.UnreadCount() != 4 {
		t.Fatalf("unread = %d, want 4", s.UnreadCount())
	}

	// Marking the same record twice changes nothing.
	s.MarkRead("n-2")
	check()
	if s.UnreadCount() != 4 {
		t.Fatalf("unread = %d after re-mark, want 4", s.UnreadCount())
	}

	s.MarkAllRead()
	check()
	if s.UnreadCount() != 0 {
		t.Fatalf("unread = %d after mark all, want 0", s.UnreadCount())
	}
}

func TestNotificationStore_DeleteAndClear(t *testing.T) {
	s := NewNotificationStore()
	s.Prepend(Notification{ID: "n-1"})
	s.Prepend(Notification{ID: "n-2"})

	if !s.Delete("n-1") {
		t.Fatal("Delete n-1 failed")
	}
	if s.Delete("n-1") {
		t.Fatal("second Delete should report missing")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}

	s.Clear()
	if s.Len() != 0 || s.UnreadCount() != 0 {
		t.Fatalf("len = %d unread = %d after clear", s.Len(), s.UnreadCount())
	}
}

func TestNotificationStore_Replace(t *testing.T) {
	s := NewNotificationStore()
	s.Prepend(Notification{ID: "stale"})
	s.Replace([]Notification{
		{ID: "n-1", IsRead: true},
		{ID: "n-2"},
	})
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1", s.UnreadCount())
	}
}
