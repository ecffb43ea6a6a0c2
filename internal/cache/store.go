// Package cache is the local read cache: the last known tasks, stats, and
// notifications, persisted in SQLite so the CLI stays useful offline and the
// TUI paints instantly on startup. The server is authoritative; the cache is
// only ever overwritten wholesale by a refetch, never merged.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/state"
)

const (
	schemaVersion  = 2
	schemaChecksum = "tw-v2-2026-07-03-notification-type"
)

// Query names the cached result sets that can be marked stale.
const (
	QueryTasks         = "tasks"
	QueryStats         = "stats"
	QueryNotifications = "notifications"
)

// Store is the SQLite-backed cache.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache database and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// SQLite allows one writer at a time; serialize through a single conn.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			bucket_id TEXT NOT NULL DEFAULT '',
			assignee_id TEXT NOT NULL DEFAULT '',
			assignee_email TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_stats (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			in_progress INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			overdue INTEGER NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			is_read INTEGER NOT NULL DEFAULT 0,
			task_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate cache schema: %w", err)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?), ('schema_checksum', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(schemaVersion), schemaChecksum,
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceTasks swaps the cached task list for the given set and clears the
// stale flag for the tasks query.
func (s *Store) ReplaceTasks(ctx context.Context, tasks []api.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	for _, t := range tasks {
		var due any
		if t.DueDate != nil {
			due = t.DueDate.UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, title, description, status, priority, bucket_id,
				assignee_id, assignee_email, created_by, due_date, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, t.Status, t.Priority, t.BucketID,
			t.AssigneeID, t.AssigneeEmail, t.CreatedBy, due, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	if err := setStaleTx(ctx, tx, QueryTasks, false); err != nil {
		return err
	}
	return tx.Commit()
}

// Tasks returns the cached task list, newest update first.
func (s *Store) Tasks(ctx context.Context) ([]api.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, status, priority, bucket_id,
			assignee_id, assignee_email, created_by, due_date, created_at, updated_at
		 FROM tasks ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []api.Task
	for rows.Next() {
		var t api.Task
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&t.BucketID, &t.AssigneeID, &t.AssigneeEmail, &t.CreatedBy,
			&due, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetStats replaces the cached stats row.
func (s *Store) SetStats(ctx context.Context, stats api.TaskStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_stats (id, total, pending, in_progress, completed, overdue, fetched_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			total = excluded.total, pending = excluded.pending,
			in_progress = excluded.in_progress, completed = excluded.completed,
			overdue = excluded.overdue, fetched_at = excluded.fetched_at`,
		stats.Total, stats.Pending, stats.InProgress, stats.Completed, stats.Overdue,
		time.Now().UTC())
	if err != nil {
		return err
	}
	return s.SetStale(ctx, QueryStats, false)
}

// Stats returns the cached stats row. ok is false when nothing has been
// fetched yet.
func (s *Store) Stats(ctx context.Context) (stats api.TaskStats, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT total, pending, in_progress, completed, overdue FROM task_stats WHERE id = 1`)
	err = row.Scan(&stats.Total, &stats.Pending, &stats.InProgress, &stats.Completed, &stats.Overdue)
	if errors.Is(err, sql.ErrNoRows) {
		return api.TaskStats{}, false, nil
	}
	if err != nil {
		return api.TaskStats{}, false, err
	}
	return stats, true, nil
}

// ReplaceNotifications swaps the cached notification list.
func (s *Store) ReplaceNotifications(ctx context.Context, items []state.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return err
	}
	for _, n := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, message, type, is_read, task_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, n.Message, string(n.Type), n.IsRead, n.TaskID, n.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
	}
	if err := setStaleTx(ctx, tx, QueryNotifications, false); err != nil {
		return err
	}
	return tx.Commit()
}

// Notifications returns the cached notification list, newest first.
func (s *Store) Notifications(ctx context.Context) ([]state.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message, type, is_read, task_id, created_at
		 FROM notifications ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []state.Notification
	for rows.Next() {
		var n state.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.Message, &typ, &n.IsRead, &n.TaskID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = state.NotificationType(typ)
		items = append(items, n)
	}
	return items, rows.Err()
}

// SetStale marks (or clears) the stale flag for a cached query. Lazy
// invalidation: stale data is still served, but callers know to refetch.
func (s *Store) SetStale(ctx context.Context, query string, stale bool) error {
	value := "0"
	if stale {
		value = "1"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		"stale:"+query, value)
	return err
}

func setStaleTx(ctx context.Context, tx *sql.Tx, query string, stale bool) error {
	value := "0"
	if stale {
		value = "1"
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		"stale:"+query, value)
	return err
}

// IsStale reports whether a cached query has been invalidated. Unknown
// queries are stale: nothing was ever fetched.
func (s *Store) IsStale(ctx context.Context, query string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, "stale:"+query)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return value == "1", nil
}
