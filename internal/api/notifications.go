package api

import (
	"context"
	"net/http"

	"github.com/taskwire/taskwire/internal/state"
)

// ListNotifications fetches the user's notification history.
func (c *Client) ListNotifications(ctx context.Context) ([]state.Notification, error) {
	var items []state.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &items, callOpts{}); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkNotificationRead flips one record to read, server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/notifications/"+id+"/read", nil, nil, callOpts{})
}

// MarkAllNotificationsRead flips every record to read, server-side.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/notifications/read-all", nil, nil, callOpts{})
}

// DeleteNotification removes one record, server-side.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+id, nil, nil, callOpts{})
}

// ClearNotifications removes every record, server-side.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/notifications/clear", nil, nil, callOpts{})
}

// RegisterPushToken associates a device token with the current user so the
// backend can target push deliveries at this client.
func (c *Client) RegisterPushToken(ctx context.Context, reg PushRegistration) error {
	return c.do(ctx, http.MethodPost, "/push/register", reg, nil, callOpts{})
}
