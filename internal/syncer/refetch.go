package syncer

import (
	"context"
	"fmt"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/cache"
)

// Refetcher pulls authoritative state from the server after a realtime event.
// Task data is refreshed eagerly; notifications are only marked stale and
// re-read the next time someone looks at them.
type Refetcher interface {
	Refetch(ctx context.Context) error
	InvalidateNotifications(ctx context.Context) error
}

// TaskBackend is the slice of the API client the refetcher needs.
type TaskBackend interface {
	ListTasks(ctx context.Context) ([]api.Task, error)
	TaskStats(ctx context.Context) (api.TaskStats, error)
}

// CacheRefetcher refreshes the SQLite cache from the server.
type CacheRefetcher struct {
	Backend TaskBackend
	Cache   *cache.Store
}

// Refetch pulls the task list and stats and overwrites the cache wholesale.
func (r *CacheRefetcher) Refetch(ctx context.Context) error {
	tasks, err := r.Backend.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("refetch tasks: %w", err)
	}
	if err := r.Cache.ReplaceTasks(ctx, tasks); err != nil {
		return err
	}
	stats, err := r.Backend.TaskStats(ctx)
	if err != nil {
		return fmt.Errorf("refetch stats: %w", err)
	}
	return r.Cache.SetStats(ctx, stats)
}

// InvalidateNotifications marks the cached notification list stale.
func (r *CacheRefetcher) InvalidateNotifications(ctx context.Context) error {
	return r.Cache.SetStale(ctx, cache.QueryNotifications, true)
}
