package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/bus"
	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/channels"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/cron"
	otelPkg "github.com/taskwire/taskwire/internal/otel"
	"github.com/taskwire/taskwire/internal/push"
	"github.com/taskwire/taskwire/internal/realtime"
	"github.com/taskwire/taskwire/internal/state"
	"github.com/taskwire/taskwire/internal/syncer"
	"github.com/taskwire/taskwire/internal/telemetry"
	"github.com/taskwire/taskwire/internal/tui"
)

// runWatch wires the full client graph: API client, cache, realtime sync
// engine, resync scheduler, notification channels, and either the TUI or a
// headless loop.
func runWatch(ctx context.Context, interactive bool) int {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	// Quiet logs (file-only) in interactive mode so the TUI stays clean.
	logger, logClose, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, interactive)
	if err != nil {
		fatalStartup(nil, "E_LOG_INIT", err)
	}
	defer logClose.Close()
	slog.SetDefault(logger)

	provider, err := otelPkg.Init(ctx, otelPkg.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		fatalStartup(logger, "E_OTEL_INIT", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := otelPkg.NewMetrics(provider.Meter)
	if err != nil {
		fatalStartup(logger, "E_OTEL_METRICS", err)
	}

	sessions, err := state.NewSessionStore(cfg.HomeDir)
	if err != nil {
		fatalStartup(logger, "E_STATE_DIR", err)
	}
	if !sessions.Valid() {
		fmt.Fprintln(os.Stderr, "not logged in; run taskwire login first")
		return 1
	}

	store, err := cache.Open(filepath.Join(cfg.HomeDir, "cache.db"))
	if err != nil {
		fatalStartup(logger, "E_CACHE_OPEN", err)
	}
	defer store.Close()

	b := bus.New()
	client := api.New(api.Config{
		BaseURL:  cfg.ServerURL,
		Sessions: sessions,
		Bus:      b,
		Logger:   logger,
		Timeout:  time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	notifications := state.NewNotificationStore()
	seedNotifications(ctx, client, store, notifications, logger)

	conn, err := realtime.New(cfg.SocketURL, logger, realtime.Options{
		MaxReconnectAttempts: cfg.Sync.MaxReconnectAttempts,
	})
	if err != nil {
		fatalStartup(logger, "E_SOCKET_INIT", err)
	}

	refetcher := &syncer.CacheRefetcher{Backend: client, Cache: store}
	engine := syncer.New(syncer.Config{
		Transport:      conn,
		Refetcher:      refetcher,
		Sessions:       sessions,
		Notifications:  notifications,
		Bus:            b,
		Logger:         logger,
		Metrics:        otelPkg.EngineMetrics{M: metrics},
		ThrottleWindow: time.Duration(cfg.Sync.ThrottleWindowMillis) * time.Millisecond,
	})
	if err := engine.Start(ctx); err != nil {
		if errors.Is(err, syncer.ErrNoSession) {
			fmt.Fprintln(os.Stderr, "not logged in; run taskwire login first")
			return 1
		}
		fatalStartup(logger, "E_SYNC_START", err)
	}
	defer engine.Stop()

	var scheduler *cron.Scheduler
	if cfg.Sync.ResyncCron != "" {
		scheduler, err = cron.NewScheduler(cron.Config{
			Expr:   cfg.Sync.ResyncCron,
			Resync: refetcher.Refetch,
			Logger: logger,
		})
		if err != nil {
			fatalStartup(logger, "E_RESYNC_CRON", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	startChannels(ctx, cfg, b, logger, interactive)

	if cfg.Push.Enabled {
		registrar := push.NewRegistrar(client, cfg.HomeDir, cfg.Push.Platform, logger)
		go registrar.Register(ctx)
	}

	watchConfigChanges(ctx, cfg, logger)

	snapshot := func() tui.Snapshot {
		return buildSnapshot(sessions, engine, notifications, store, scheduler, started)
	}

	if interactive {
		if err := tui.Run(ctx, snapshot, b); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("tui exited", "error", err)
			return 1
		}
		return 0
	}

	logger.Info("sync engine running", "version", Version, "server", cfg.ServerURL)
	expired := b.Subscribe(bus.TopicSessionExpired)
	defer b.Unsubscribe(expired)
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return 0
	case <-expired.Ch():
		fmt.Fprintln(os.Stderr, "session expired; run taskwire login")
		return 1
	}
}

// seedNotifications fills the in-memory store before the engine connects so
// the unread badge is right immediately. Best effort: the first refetch
// repairs any gap.
func seedNotifications(ctx context.Context, client *api.Client, store *cache.Store, notifications *state.NotificationStore, logger *slog.Logger) {
	seedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	items, err := client.ListNotifications(seedCtx)
	if err != nil {
		logger.Warn("notification seed from server failed, using cache", "error", err)
		items, err = store.Notifications(seedCtx)
		if err != nil {
			logger.Warn("notification seed from cache failed", "error", err)
			return
		}
		notifications.Replace(items)
		return
	}

	notifications.Replace(items)
	if err := store.ReplaceNotifications(seedCtx, items); err != nil {
		logger.Warn("cache notifications", "error", err)
	}
	if err := store.SetStale(seedCtx, cache.QueryNotifications, false); err != nil {
		logger.Warn("clear staleness", "error", err)
	}
}

// startChannels brings up the delivery sinks and the dispatcher feeding them.
// The terminal toast channel only runs headless; in interactive mode the TUI
// feed renders toasts itself.
func startChannels(ctx context.Context, cfg config.Config, b *bus.Bus, logger *slog.Logger, interactive bool) {
	var sinks []channels.Channel
	if !interactive {
		sinks = append(sinks, channels.NewToastChannel(os.Stderr))
	}
	if cfg.Channels.Telegram.Enabled {
		tg := channels.NewTelegramChannel(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.ChatIDs, logger)
		sinks = append(sinks, tg)
	}

	for _, sink := range sinks {
		go func(c channels.Channel) {
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("channel stopped", "channel", c.Name(), "error", err)
			}
		}(sink)
	}

	dispatcher := push.NewDispatcher(b, sinks, logger)
	go dispatcher.Run(ctx)
}

// watchConfigChanges logs edits to config.yaml. Settings are read once at
// startup; the log line tells the user a restart is needed to apply them.
func watchConfigChanges(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	watcher := config.NewWatcher(cfg.HomeDir, logger)
	go func() {
		if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()
	go func() {
		fingerprint := cfg.Fingerprint()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events():
				if !ok {
					return
				}
				fresh, err := config.LoadFrom(cfg.HomeDir)
				if err != nil {
					logger.Warn("config changed but unreadable", "path", ev.Path, "error", err)
					continue
				}
				if fp := fresh.Fingerprint(); fp != fingerprint {
					fingerprint = fp
					logger.Info("config changed on disk, restart to apply", "path", ev.Path, "fingerprint", fp)
				}
			}
		}
	}()
}

func buildSnapshot(sessions *state.SessionStore, engine *syncer.Engine, notifications *state.NotificationStore, store *cache.Store, scheduler *cron.Scheduler, started time.Time) tui.Snapshot {
	snap := tui.Snapshot{
		State:  string(engine.State()),
		Unread: notifications.UnreadCount(),
		Uptime: time.Since(started),
	}
	if sess, ok := sessions.Current(); ok {
		snap.Email = sess.Email
	}
	if scheduler != nil {
		snap.NextResync = scheduler.NextRun()
	}

	statsCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if stats, ok, err := store.Stats(statsCtx); err == nil && ok {
		snap.TotalTasks = stats.Total
		snap.Pending = stats.Pending
		snap.InProgress = stats.InProgress
		snap.Completed = stats.Completed
		snap.Overdue = stats.Overdue
	}
	return snap
}
