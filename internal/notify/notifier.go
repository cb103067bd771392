// Package notify pushes operator alerts over one or more channels (Telegram,
// Discord). Alerts are filtered by event type so operators receive only what
// they opted into; financial failures are the primary use.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// eventTitles maps event types onto the alert headline shown to operators.
var eventTitles = map[string]string{
	"settlement_failed": "Settlement failed",
	"refund_failed":     "Refund failed",
	"error":             "Router error",
}

// Notifier dispatches alerts to the registered senders. It holds a set of
// allowed event types; Notify drops events outside the set. Delivery errors
// are logged, not returned: an unreachable webhook must never fail the
// settlement path that raised the alert.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. If events
// is empty, all event types pass the filter.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends an alert for the given event type if it passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, message string) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return
	}

	title := eventTitles[event]
	if title == "" {
		title = event
	}
	n.dispatch(ctx, title, message)
}

// dispatch delivers to every sender. One failing sender does not stop
// delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", fmt.Sprintf("%v", err)),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
}
