// Package notifier reacts to workflow events. Today it writes structured log
// entries where a mail or chat integration would hook in; the review workflow
// itself never waits on delivery.
package notifier

import (
	"context"
	"log/slog"

	"github.com/wibowo/expense-report/internal/core/events"
)

type Notifier struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) HandleStatusChanged(ctx context.Context, event events.Event) error {
	data, ok := event.Payload().(map[string]interface{})
	if !ok {
		n.logger.Error("unexpected payload for status change event", "event_id", event.EventID())
		return nil
	}

	n.logger.Info("expense status notification",
		"event_id", event.EventID(),
		"form_id", data["form_id"],
		"title_id", data["title_id"],
		"from_status", data["from_status"],
		"to_status", data["to_status"],
		"comments", data["comments"])
	return nil
}

func (n *Notifier) HandleTitleDeleted(ctx context.Context, event events.Event) error {
	data, ok := event.Payload().(map[string]interface{})
	if !ok {
		n.logger.Error("unexpected payload for title deleted event", "event_id", event.EventID())
		return nil
	}

	n.logger.Info("expense report removal notification",
		"event_id", event.EventID(),
		"title_id", data["title_id"],
		"form_count", data["form_count"])
	return nil
}

func (n *Notifier) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeStatusChanged, n.HandleStatusChanged)
	eventBus.Subscribe(events.EventTypeTitleDeleted, n.HandleTitleDeleted)

	n.logger.Info("notifier event handlers registered",
		"handlers", []string{events.EventTypeStatusChanged, events.EventTypeTitleDeleted})
}
