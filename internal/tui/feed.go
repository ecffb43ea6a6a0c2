package tui

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// FeedItem is one line in the notification feed.
type FeedItem struct {
	Message    string
	Level      string
	Sticky     bool
	ReceivedAt time.Time
}

// Feed holds the most recent toasts shown under the status header. Sticky
// items survive trimming; everything else rotates out.
type Feed struct {
	mu       sync.Mutex
	items    []FeedItem
	maxItems int
}

func NewFeed() *Feed {
	return &Feed{maxItems: 8}
}

func (f *Feed) Add(item FeedItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	if len(f.items) <= f.maxItems {
		return
	}
	// Drop the oldest non-sticky item.
	for i, it := range f.items {
		if !it.Sticky {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return
		}
	}
	f.items = f.items[1:]
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *Feed) View() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	info := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errS := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	var out strings.Builder
	out.WriteString(dim.Render("── Notifications ──") + "\n")
	for _, it := range f.items {
		line := it.Message
		if it.Sticky {
			line += " (restart required)"
		}
		switch it.Level {
		case "warn":
			out.WriteString(warn.Render(line))
		case "error":
			out.WriteString(errS.Render(line))
		default:
			out.WriteString(info.Render(line))
		}
		out.WriteString(dim.Render("  " + it.ReceivedAt.Format("15:04:05")))
		out.WriteString("\n")
	}
	return out.String()
}
