package push

import (
	"context"
	"log/slog"

	"github.com/taskwire/taskwire/internal/bus"
	"github.com/taskwire/taskwire/internal/channels"
)

// Dispatcher turns bus traffic into channel deliveries: push messages get
// the type-keyed presentation, toasts pass through as-is.
type Dispatcher struct {
	bus      *bus.Bus
	channels []channels.Channel
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher fanning out to the given channels.
func NewDispatcher(b *bus.Bus, chans []channels.Channel, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{bus: b, channels: chans, logger: logger}
}

// Run consumes bus events until the context ends.
func (d *Dispatcher) Run(ctx context.Context) {
	pushes := d.bus.Subscribe(bus.TopicPushMessage)
	toasts := d.bus.Subscribe(bus.TopicToast)
	defer d.bus.Unsubscribe(pushes)
	defer d.bus.Unsubscribe(toasts)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-pushes.Ch():
			msg, ok := ev.Payload.(bus.PushMessage)
			if !ok {
				continue
			}
			d.deliver(ctx, renderPush(msg))
		case ev := <-toasts.Ch():
			toast, ok := ev.Payload.(bus.Toast)
			if !ok {
				continue
			}
			d.deliver(ctx, channels.Delivery{
				Body:   toast.Message,
				Level:  toast.Level,
				Sticky: toast.Sticky,
			})
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, del channels.Delivery) {
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, del); err != nil {
			d.logger.Warn("channel delivery failed", "channel", ch.Name(), "error", err)
		}
	}
}

// renderPush applies the presentation table to a push message. The server's
// title wins when present; the table supplies the icon and severity.
func renderPush(msg bus.PushMessage) channels.Delivery {
	p := PresentationFor(msg.Type)
	title := msg.Title
	if title == "" {
		title = p.Label
	}
	return channels.Delivery{
		Icon:  p.Icon,
		Title: title,
		Body:  msg.Body,
		Level: p.Level,
	}
}
