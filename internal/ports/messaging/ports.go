package messaging

import (
	"context"
)

// Notifier delivers a notification downstream. Callers treat it as best
// effort; an error is logged, never surfaced to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MessageSender defines the interface for sending raw messages to a messaging system.
type MessageSender interface {
	SendMessage(ctx context.Context, destination string, body []byte) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
