// Package channels delivers rendered notifications to the user: a styled
// terminal feed and an optional Telegram forwarder. Channels are one-way
// sinks; the push dispatcher decides what reaches them.
package channels

import (
	"context"
)

// Delivery is one rendered notification ready for display.
type Delivery struct {
	Icon  string
	Title string
	Body  string
	Level string // "info", "warn", or "error"
	// Sticky deliveries should stay visible until the user acts.
	Sticky bool
}

// Channel is a delivery sink.
type Channel interface {
	// Name returns the unique name of the channel (e.g., "telegram").
	Name() string

	// Start brings the channel up. It should block until the context is
	// canceled or a fatal error occurs.
	Start(ctx context.Context) error

	// Notify delivers one notification.
	Notify(ctx context.Context, d Delivery) error
}
