package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicViewerStatus = "tipgate.viewer.status"
	TopicContestEnded = "tipgate.contest.ended"
)

// ViewerStatusChanged is emitted when a tip validation persists a terminal status
type ViewerStatusChanged struct {
	ImageID   string    `json:"image_id"`
	ViewerFID string    `json:"viewer_fid"`
	Status    string    `json:"status"`
	TipsGiven float64   `json:"tips_given"`
	At        time.Time `json:"at"`
}

// ContestEnded is emitted when a creator finishes a contest
type ContestEnded struct {
	ImageID    string    `json:"image_id"`
	CreatorFID string    `json:"creator_fid"`
	At         time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
