package services

import (
	"context"
	"time"

	"tip-gate-backend/internal/events"

	"github.com/rs/zerolog/log"
)

// EventStatusListener forwards status changes to the event bus
type EventStatusListener struct {
	publisher events.Publisher
}

// NewEventStatusListener creates a listener publishing to publisher
func NewEventStatusListener(publisher events.Publisher) *EventStatusListener {
	return &EventStatusListener{publisher: publisher}
}

// ViewerStatusChanged publishes a ViewerStatusChanged event
func (l *EventStatusListener) ViewerStatusChanged(ctx context.Context, change StatusChange) {
	event := events.ViewerStatusChanged{
		ImageID:   change.ImageID,
		ViewerFID: change.ViewerFID,
		Status:    string(change.Status),
		TipsGiven: change.TipsGiven,
		At:        time.Now().UTC(),
	}
	if err := l.publisher.Publish(ctx, events.TopicViewerStatus, event); err != nil {
		log.Error().
			Err(err).
			Str("image_id", change.ImageID).
			Str("viewer_fid", change.ViewerFID).
			Msg("Failed to publish viewer status event")
	}
}
