package command

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/events"
	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/pkg/catalog"
)

// PublishChanges announces every successful mutation on the event bus so that
// watching clients can drop the queries it made stale.
func PublishChanges(pub events.Publisher, now func() time.Time, logger zerolog.Logger) Hook {
	return func(ctx context.Context, cmd catalog.Command) {
		event := &models.DataChangedEvent{
			Command:     cmd.Name,
			Invalidates: cmd.Invalidates,
			Timestamp:   now().Unix(),
		}
		if err := pub.PublishDataChanged(ctx, event); err != nil {
			logger.Warn().Err(err).Str("command", cmd.Name).Msg("Failed to publish data changed event")
		}
	}
}
