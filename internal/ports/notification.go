package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventPublisher defines the interface for domain event publishing
type EventPublisher interface {
	// Publish publishes a domain event
	Publish(ctx context.Context, event Event) error

	// Close flushes and releases the underlying transport
	Close() error
}

// Event represents a domain event
type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Aggregate   string                 `json:"aggregate"`
	AggregateID string                 `json:"aggregate_id"`
	Data        map[string]interface{} `json:"data"`
	Version     int                    `json:"version"`
	CreatedAt   int64                  `json:"created_at"`
}

// Event Types
const (
	EventTypeReservationCreated = "reservation.created"
	EventTypeReservationUpdated = "reservation.updated"
	EventTypeReservationDeleted = "reservation.deleted"
)

// NewEvent creates a new domain event
func NewEvent(eventType, aggregate, aggregateID string, data map[string]interface{}, version int) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		Data:        data,
		Version:     version,
		CreatedAt:   time.Now().Unix(),
	}
}

// NoopEventPublisher drops every event
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NoopEventPublisher) Close() error { return nil }
