package services

import (
	"context"

	"social-chat/internal/websocket"
)

// Event is a domain notification addressed to one user.
type Event struct {
	Type      websocket.MessageType
	Recipient uint
	// Actor is the user whose action produced the event.
	Actor uint
	Data  any
}

// Notifier delivers events. Delivery is best effort and never fails the
// caller; the result reports whether a live connection received it.
type Notifier interface {
	Notify(ctx context.Context, ev Event) bool
}

// Notifiers fans an event out to every notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) bool {
	delivered := false
	for _, n := range ns {
		if n != nil && n.Notify(ctx, ev) {
			delivered = true
		}
	}
	return delivered
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) bool { return false }
