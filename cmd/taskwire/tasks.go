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
	"time"

	"github.com/taskwire/taskwire/internal/api"
)

func runTasksCommand(ctx context.Context, args []string) int {
	action := "list"
	if len(args) > 0 {
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
		return runTaskList(ctx, a)
	case "show":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: taskwire tasks show <id>")
			return 2
		}
		return runTaskShow(ctx, a, args[0])
	case "create":
		return runTaskCreate(ctx, a, args)
	case "start":
		return runTaskTransition(ctx, a, args, "in_progress", "started")
	case "done":
		return runTaskTransition(ctx, a, args, "completed", "completed")
	case "rm":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: taskwire tasks rm <id>")
			return 2
		}
		if err := a.client.DeleteTask(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "delete task: %v\n", err)
			return 1
		}
		fmt.Printf("Task %s deleted\n", args[0])
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown tasks action %q (want list, show, create, start, done, or rm)\n", action)
		return 2
	}
}

// runTaskList prefers fresh server data and falls back to the cache when the
// server is unreachable, so the command keeps working offline.
func runTaskList(ctx context.Context, a *app) int {
	tasks, err := a.client.ListTasks(ctx)
	cached := false
	if err != nil {
		if !errors.Is(err, api.ErrServerUnavailable) {
			fmt.Fprintf(os.Stderr, "list tasks: %v\n", err)
			return 1
		}
		tasks, err = a.store.Tasks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "server unavailable and cache unreadable: %v\n", err)
			return 1
		}
		cached = true
	} else if err := a.store.ReplaceTasks(ctx, tasks); err != nil {
		a.logger.Warn("cache tasks", "error", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return 0
	}
	renderTaskTable(os.Stdout, tasks)
	if cached {
		fmt.Println("(cached; server unavailable)")
	}
	return 0
}

func runTaskShow(ctx context.Context, a *app, id string) int {
	task, err := a.client.GetTask(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "no task %q\n", id)
			return 1
		}
		fmt.Fprintf(os.Stderr, "get task: %v\n", err)
		return 1
	}

	fmt.Printf("%s  [%s]\n", task.Title, task.Status)
	fmt.Printf("  id:        %s\n", task.ID)
	if task.Description != "" {
		fmt.Printf("  desc:      %s\n", task.Description)
	}
	if task.Priority != "" {
		fmt.Printf("  priority:  %s\n", task.Priority)
	}
	if task.AssigneeEmail != "" {
		fmt.Printf("  assignee:  %s\n", task.AssigneeEmail)
	}
	fmt.Printf("  due:       %s\n", formatDue(task.DueDate))
	fmt.Printf("  updated:   %s\n", task.UpdatedAt.Local().Format("2006-01-02 15:04"))
	return 0
}

func runTaskCreate(ctx context.Context, a *app, args []string) int {
	fs := flag.NewFlagSet("taskwire tasks create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	title := fs.String("title", "", "task title (required)")
	desc := fs.String("desc", "", "task description")
	priority := fs.String("priority", "", "low, medium, or high")
	bucket := fs.String("bucket", "", "bucket id")
	assignee := fs.String("assignee", "", "assignee user id")
	due := fs.String("due", "", "due date (2006-01-02 or RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *title == "" {
		fmt.Fprintln(os.Stderr, "usage: taskwire tasks create -title <title> [-desc ...] [-priority ...] [-due 2006-01-02]")
		return 2
	}

	dueDate, err := parseDueDate(*due)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -due value: %v\n", err)
		return 2
	}

	task, err := a.client.CreateTask(ctx, api.CreateTaskRequest{
		Title:       *title,
		Description: *desc,
		Priority:    *priority,
		BucketID:    *bucket,
		AssigneeID:  *assignee,
		DueDate:     dueDate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create task: %v\n", err)
		return 1
	}

	fmt.Printf("Task %s created: %s\n", task.ID, task.Title)
	return 0
}

func runTaskTransition(ctx context.Context, a *app, args []string, status, verb string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: taskwire tasks %s <id>\n", verb)
		return 2
	}
	task, err := a.client.UpdateTaskStatus(ctx, args[0], status)
	if err != nil {
		if api.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "no task %q\n", args[0])
			return 1
		}
		fmt.Fprintf(os.Stderr, "update task: %v\n", err)
		return 1
	}
	fmt.Printf("Task %s %s: %s\n", task.ID, verb, task.Title)
	return 0
}

func runStatsCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: taskwire stats")
		return 2
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

	stats, err := a.client.TaskStats(ctx)
	cached := false
	if err != nil {
		if !errors.Is(err, api.ErrServerUnavailable) {
			fmt.Fprintf(os.Stderr, "stats: %v\n", err)
			return 1
		}
		var ok bool
		stats, ok, err = a.store.Stats(ctx)
		if err != nil || !ok {
			fmt.Fprintln(os.Stderr, "server unavailable and no cached stats")
			return 1
		}
		cached = true
	} else if err := a.store.SetStats(ctx, stats); err != nil {
		a.logger.Warn("cache stats", "error", err)
	}

	fmt.Print(formatStats(stats))
	if cached {
		fmt.Println("(cached; server unavailable)")
	}
	return 0
}

func runUsersCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: taskwire users")
		return 2
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

	users, err := a.client.ListUsers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list users: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	tw.Flush()
	return 0
}

func runBucketsCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: taskwire buckets")
		return 2
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

	buckets, err := a.client.ListBuckets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list buckets: %v\n", err)
		return 1
	}
	for _, b := range buckets {
		fmt.Printf("%s  %s\n", b.ID, b.Name)
	}
	return 0
}

func formatStats(stats api.TaskStats) string {
	return fmt.Sprintf(
		"Total:       %d\nPending:     %d\nIn progress: %d\nCompleted:   %d\nOverdue:     %d\n",
		stats.Total, stats.Pending, stats.InProgress, stats.Completed, stats.Overdue)
}

func renderTaskTable(w io.Writer, tasks []api.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			task.ID, truncate(task.Title, 40), task.Status, task.Priority, formatDue(task.DueDate))
	}
	tw.Flush()
}

// parseDueDate accepts a bare date or a full RFC 3339 timestamp. Bare dates
// become end-of-day local time so a task due "today" is not already overdue.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("want 2006-01-02 or RFC 3339, got %q", raw)
	}
	t := day.Add(24*time.Hour - time.Second)
	return &t, nil
}

func formatDue(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
