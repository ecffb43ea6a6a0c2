package state

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSessionStore_SetPersistsSnapshot(t *testing.T) {
	home := t.TempDir()
	store, err := NewSessionStore(home)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	if store.Valid() {
		t.Fatal("fresh store should not be valid")
	}

	sess := Session{UserID: "u-1", Email: "ana@example.com", Role: "admin", Token: "tok-abc"}
	if err := store.Set(sess); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if store.Token() != "tok-abc" {
		t.Fatalf("Token = %q, want tok-abc", store.Token())
	}

	// A fresh store over the same directory must see the snapshot.
	reopened, err := NewSessionStore(home)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Current()
	if !ok {
		t.Fatal("expected session after reopen")
	}
	if got.Email != "ana@example.com" || got.Token != "tok-abc" {
		t.Fatalf("reopened session = %+v", got)
	}
}

func TestSessionStore_SnapshotPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	home := t.TempDir()
	store, err := NewSessionStore(home)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(Session{UserID: "u-1", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(home, sessionFileName))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("snapshot mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSessionStore_Clear(t *testing.T) {
	home := t.TempDir()
	store, err := NewSessionStore(home)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(Session{UserID: "u-1", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Valid() {
		t.Fatal("store still valid after Clear")
	}
	if _, err := os.Stat(filepath.Join(home, sessionFileName)); !os.IsNotExist(err) {
		t.Fatal("snapshot file still present after Clear")
	}
	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

func TestSessionStore_CorruptSnapshotIgnored(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, sessionFileName), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := NewSessionStore(home)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	if store.Valid() {
		t.Fatal("corrupt snapshot should not produce a session")
	}
}
