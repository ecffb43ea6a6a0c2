package channels

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	toastInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	toastWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	toastErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// ToastChannel renders deliveries as single styled lines on a writer,
// usually stderr. It is always on; every other channel is opt-in.
type ToastChannel struct {
	mu  sync.Mutex
	out io.Writer
	// NoColor disables styling, e.g. when stderr is not a terminal.
	NoColor bool
}

// NewToastChannel creates a toast channel writing to out.
func NewToastChannel(out io.Writer) *ToastChannel {
	return &ToastChannel{out: out}
}

func (t *ToastChannel) Name() string { return "toast" }

// Start blocks until the context ends. The channel has no background work.
func (t *ToastChannel) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Notify writes one line. Write errors are returned but a toast is best
// effort; callers log and move on.
func (t *ToastChannel) Notify(ctx context.Context, d Delivery) error {
	line := renderToast(d, t.NoColor)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.out, line)
	return err
}

func renderToast(d Delivery, noColor bool) string {
	var b strings.Builder
	if d.Icon != "" {
		b.WriteString(d.Icon)
		b.WriteString(" ")
	}
	if d.Title != "" {
		b.WriteString(d.Title)
		if d.Body != "" {
			b.WriteString(": ")
		}
	}
	b.WriteString(d.Body)
	if d.Sticky {
		b.WriteString(" (restart required)")
	}
	text := b.String()
	if noColor {
		return text
	}
	switch d.Level {
	case "warn":
		return toastWarnStyle.Render(text)
	case "error":
		return toastErrStyle.Render(text)
	default:
		return toastInfoStyle.Render(text)
	}
}
