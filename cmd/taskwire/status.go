package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/cache"
)

func runStatusCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: taskwire status")
		return 2
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	fmt.Printf("home:    %s\n", a.cfg.HomeDir)
	fmt.Printf("server:  %s\n", a.cfg.ServerURL)
	fmt.Printf("socket:  %s\n", a.cfg.SocketURL)
	fmt.Printf("config:  fingerprint %s\n", a.cfg.Fingerprint())

	sess, ok := a.sessions.Current()
	if !ok || sess.Token == "" {
		fmt.Println("session: not logged in")
	} else {
		line := fmt.Sprintf("session: %s (%s)", sess.Email, sess.Role)
		if sess.IsImpersonating {
			line += " [impersonating]"
		}
		fmt.Println(line)
	}

	printCacheStatus(ctx, a)

	if !ok || sess.Token == "" {
		return 0
	}

	// A short probe so status answers "is the backend up" without hanging.
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := a.client.Probe(probeCtx); err != nil {
		switch {
		case api.IsUnauthorized(err):
			fmt.Println("backend: reachable, session expired (run taskwire login)")
			return 1
		default:
			fmt.Printf("backend: unreachable (%v)\n", err)
			return 1
		}
	}
	fmt.Println("backend: ok")
	return 0
}

func printCacheStatus(ctx context.Context, a *app) {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		fmt.Printf("cache:   unreadable (%v)\n", err)
		return
	}
	notifs, err := a.store.Notifications(ctx)
	if err != nil {
		fmt.Printf("cache:   unreadable (%v)\n", err)
		return
	}
	stale, err := a.store.IsStale(ctx, cache.QueryNotifications)
	if err != nil {
		stale = true
	}
	freshness := "fresh"
	if stale {
		freshness = "stale"
	}
	fmt.Printf("cache:   %d tasks, %d notifications (%s)\n", len(tasks), len(notifs), freshness)
}
