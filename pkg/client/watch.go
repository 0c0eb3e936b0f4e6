package client

import (
	"context"

	"github.com/tiza/library-service/internal/events"
	"github.com/tiza/library-service/internal/models"
)

type eventHandler struct {
	client    *Client
	onOverdue func(models.LendingOverdueEvent)
}

// EventHandler lets a client follow the event bus: data.changed events
// invalidate and refetch cached queries, overdue events go to onOverdue.
func (c *Client) EventHandler(onOverdue func(models.LendingOverdueEvent)) events.Handler {
	return &eventHandler{client: c, onOverdue: onOverdue}
}

func (h *eventHandler) HandleDataChanged(ctx context.Context, event models.DataChangedEvent) error {
	return h.client.HandleDataChanged(ctx, event.Command, event.Invalidates)
}

func (h *eventHandler) HandleLendingOverdue(_ context.Context, event models.LendingOverdueEvent) error {
	if h.onOverdue != nil {
		h.onOverdue(event)
	}
	return nil
}
