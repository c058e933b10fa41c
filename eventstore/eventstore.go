package eventstore

import (
	"context"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
)

// EventStore is the interface for event storage.
// Streams are keyed by aggregate type and aggregate id.
type EventStore interface {
	// Save saves an aggregate's uncommitted events to the store
	Save(ctx context.Context, aggregate domain.Aggregate) error

	// Load replays an aggregate's stream onto it
	Load(ctx context.Context, aggregate domain.Aggregate) error

	// Exists checks if an aggregate stream has any events
	Exists(ctx context.Context, aggregateType, aggregateID string) (bool, error)

	// GetEvents gets all events of a stream with decoded payloads
	GetEvents(ctx context.Context, aggregateType, aggregateID string) ([]domain.Event, error)

	// GetUnprocessedEvents gets events not yet handled by the projection worker
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error)

	// MarkEventAsProcessed marks an event as processed
	MarkEventAsProcessed(ctx context.Context, eventID string) error

	// MarkEventAsFailed records a projection error; the event is retried
	MarkEventAsFailed(ctx context.Context, eventID string, cause error) error
}
