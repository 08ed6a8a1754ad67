package resolution

import (
	"context"
	"time"
)

// EventType tags the lifecycle events of a resolution run.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventRunFinished  EventType = "run.finished"
	EventLinkStarted  EventType = "link.started"
	EventLinkFinished EventType = "link.finished"
)

// Event is one lifecycle notification published to interested consumers
// (dashboards, downstream analysis triggers).
type Event struct {
	RunID      string         `json:"run_id"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// EventPublisher delivers run events to an external broker.  Publishing is
// best effort from the service's point of view: a delivery failure is
// logged, never fails the run.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// NewNopPublisher returns a publisher that discards all events.
func NewNopPublisher() EventPublisher { return nopPublisher{} }
