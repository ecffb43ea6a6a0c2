// Package tui is the interactive watch view: connection state, task stats,
// the unread badge, and a rolling notification feed, all fed by the bus.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskwire/taskwire/internal/bus"
)

// Snapshot is one refresh of everything the watch view shows.
type Snapshot struct {
	Email      string
	State      string
	Attempt    int
	Unread     int
	TotalTasks int
	Pending    int
	InProgress int
	Completed  int
	Overdue    int
	NextResync time.Time
	LastError  string
	Uptime     time.Duration
}

// StatusProvider returns a fresh snapshot on every tick.
type StatusProvider func() Snapshot

type model struct {
	provider StatusProvider
	snap     Snapshot
	feed     *Feed
	sub      *bus.Subscription
}

type tickMsg time.Time

type busMsg bus.Event

func tickCmd() tea.Cmd {
	return tea.Tick(1*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForEvent blocks on the bus subscription and hands the next event to
// the update loop.
func waitForEvent(sub *bus.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Ch()
		if !ok {
			return nil
		}
		return busMsg(ev)
	}
}

func (m model) Init() tea.Cmd {
	if m.sub != nil {
		return tea.Batch(tickCmd(), waitForEvent(m.sub))
	}
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.provider()
		return m, tickCmd()
	case busMsg:
		m.applyEvent(bus.Event(msg))
		return m, waitForEvent(m.sub)
	}
	return m, nil
}

// applyEvent folds one bus event into the view ahead of the next tick, so
// state flips and toasts show up immediately instead of up to 1s late.
func (m *model) applyEvent(ev bus.Event) {
	switch ev.Topic {
	case bus.TopicToast:
		toast, ok := ev.Payload.(bus.Toast)
		if !ok {
			return
		}
		m.feed.Add(FeedItem{
			Message:    toast.Message,
			Level:      toast.Level,
			Sticky:     toast.Sticky,
			ReceivedAt: time.Now(),
		})
	case bus.TopicSyncStateChanged:
		st, ok := ev.Payload.(bus.SyncStateEvent)
		if !ok {
			return
		}
		m.snap.State = st.State
		m.snap.Attempt = st.Attempt
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	connectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	degradedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	deadStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func renderState(state string, attempt int) string {
	switch state {
	case "connected":
		return connectedStyle.Render("● connected")
	case "reconnecting":
		return degradedStyle.Render(fmt.Sprintf("◌ reconnecting (attempt %d)", attempt))
	case "gave_up":
		return deadStyle.Render("✖ disconnected, restart required")
	case "connecting":
		return degradedStyle.Render("◌ connecting")
	default:
		return dimStyle.Render("○ " + state)
	}
}

func (m model) View() string {
	s := m.snap

	header := titleStyle.Render("Taskwire") + "  " + renderState(s.State, s.Attempt)
	if s.Email != "" {
		header += dimStyle.Render("  " + s.Email)
	}

	unread := fmt.Sprintf("Unread: %d", s.Unread)
	if s.Unread > 0 {
		unread = degradedStyle.Render(unread)
	}

	stats := fmt.Sprintf("Tasks: %d (pending %d, in progress %d, completed %d, overdue %d)",
		s.TotalTasks, s.Pending, s.InProgress, s.Completed, s.Overdue)

	resync := "(off)"
	if !s.NextResync.IsZero() {
		resync = s.NextResync.Format("15:04:05")
	}
	footer := dimStyle.Render(fmt.Sprintf("Next resync: %s   Uptime: %s   Press q to quit.",
		resync, s.Uptime.Truncate(time.Second)))

	out := header + "\n\n" + stats + "\n" + unread + "\n"
	if s.LastError != "" {
		out += deadStyle.Render("Last error: "+s.LastError) + "\n"
	}
	if feed := m.feed.View(); feed != "" {
		out += "\n" + feed
	}
	return out + "\n" + footer + "\n"
}

// Run drives the watch view until the user quits or the context ends.
func Run(ctx context.Context, provider StatusProvider, b *bus.Bus) error {
	defer bestEffortResetTTY()

	var sub *bus.Subscription
	if b != nil {
		sub = b.Subscribe("")
		defer b.Unsubscribe(sub)
	}
	m := model{provider: provider, snap: provider(), feed: NewFeed(), sub: sub}
	p := tea.NewProgram(m)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		return ctx.Err()
	case err := <-done:
		return err
	}
}
