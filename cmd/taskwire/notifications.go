package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/push"
	"github.com/taskwire/taskwire/internal/state"
)

func runNotificationsCommand(ctx context.Context, args []string) int {
	action := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action = strings.ToLower(strings.TrimSpace(args[0]))
		args = args[1:]
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()

	if _, err := a.requireSession(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	switch action {
	case "list":
		return runNotificationList(ctx, a, args)
	case "read":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: taskwire notifications read <id>")
			return 2
		}
		if err := a.client.MarkNotificationRead(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "mark read: %v\n", err)
			return 1
		}
		markCacheStale(ctx, a)
		fmt.Printf("Notification %s marked read\n", args[0])
		return 0
	case "read-all":
		if err := a.client.MarkAllNotificationsRead(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "mark all read: %v\n", err)
			return 1
		}
		markCacheStale(ctx, a)
		fmt.Println("All notifications marked read")
		return 0
	case "rm":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: taskwire notifications rm <id>")
			return 2
		}
		if err := a.client.DeleteNotification(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "delete notification: %v\n", err)
			return 1
		}
		markCacheStale(ctx, a)
		fmt.Printf("Notification %s deleted\n", args[0])
		return 0
	case "clear":
		if err := a.client.ClearNotifications(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "clear notifications: %v\n", err)
			return 1
		}
		markCacheStale(ctx, a)
		fmt.Println("Notifications cleared")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown notifications action %q (want list, read, read-all, rm, or clear)\n", action)
		return 2
	}
}

// runNotificationList serves from the cache while it is fresh and refetches
// only when a realtime event marked it stale (or -remote forces it).
func runNotificationList(ctx context.Context, a *app, args []string) int {
	fs := flag.NewFlagSet("taskwire notifications list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	remote := fs.Bool("remote", false, "always fetch from the server")
	unreadOnly := fs.Bool("unread", false, "show unread notifications only")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	stale, err := a.store.IsStale(ctx, cache.QueryNotifications)
	if err != nil {
		a.logger.Warn("staleness check", "error", err)
		stale = true
	}

	var items []state.Notification
	cached := false
	if *remote || stale {
		items, err = a.client.ListNotifications(ctx)
		if err != nil {
			if !errors.Is(err, api.ErrServerUnavailable) {
				fmt.Fprintf(os.Stderr, "list notifications: %v\n", err)
				return 1
			}
			items, err = a.store.Notifications(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "server unavailable and cache unreadable: %v\n", err)
				return 1
			}
			cached = true
		} else {
			if err := a.store.ReplaceNotifications(ctx, items); err != nil {
				a.logger.Warn("cache notifications", "error", err)
			}
			if err := a.store.SetStale(ctx, cache.QueryNotifications, false); err != nil {
				a.logger.Warn("clear staleness", "error", err)
			}
		}
	} else {
		items, err = a.store.Notifications(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read cache: %v\n", err)
			return 1
		}
		cached = true
	}

	if *unreadOnly {
		filtered := items[:0]
		for _, n := range items {
			if !n.IsRead {
				filtered = append(filtered, n)
			}
		}
		items = filtered
	}

	if len(items) == 0 {
		fmt.Println("No notifications.")
		return 0
	}
	renderNotificationTable(os.Stdout, items)
	if cached {
		fmt.Println("(cached)")
	}
	return 0
}

func markCacheStale(ctx context.Context, a *app) {
	if err := a.store.SetStale(ctx, cache.QueryNotifications, true); err != nil {
		a.logger.Warn("mark cache stale", "error", err)
	}
}

func renderNotificationTable(w io.Writer, items []state.Notification) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tWHEN\tMESSAGE")
	for _, n := range items {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		p := push.PresentationFor(string(n.Type))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n",
			marker, n.ID, n.CreatedAt.Local().Format("01-02 15:04"), p.Icon, truncate(n.Message, 60))
	}
	tw.Flush()
}
