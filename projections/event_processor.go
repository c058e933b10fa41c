package projections

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/eventstore"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/metrics"
)

// Projector consumes stored events
type Projector interface {
	Name() string
	Project(ctx context.Context, event domain.Event) error
}

// EventProcessor drains unprocessed events from the event store into projectors.
// An event stays unprocessed until every projector accepts it.
type EventProcessor struct {
	eventStore         eventstore.EventStore
	projectors         []Projector
	metrics            *metrics.Metrics
	batchSize          int
	processingInterval time.Duration
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(eventStore eventstore.EventStore, m *metrics.Metrics, batchSize int, interval time.Duration, projectors ...Projector) *EventProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &EventProcessor{
		eventStore:         eventStore,
		projectors:         projectors,
		metrics:            m,
		batchSize:          batchSize,
		processingInterval: interval,
	}
}

// Run processes batches until the context is cancelled
func (p *EventProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.processingInterval)
	defer ticker.Stop()

	log.Info().
		Int("projectors", len(p.projectors)).
		Dur("interval", p.processingInterval).
		Msg("Event processor started")

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to process event batch")
			}
		case <-ctx.Done():
			log.Info().Msg("Event processor stopped")
			return nil
		}
	}
}

// ProcessBatch projects one batch and returns how many events were processed
func (p *EventProcessor) ProcessBatch(ctx context.Context) (int, error) {
	events, err := p.eventStore.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	log.Debug().Msgf("Processing %d events", len(events))

	processed := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}

		if err := p.processEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("eventID", event.ID).Str("eventType", event.Type).Msg("Failed to process event")
			p.metrics.ProjectedEvent(false)
			if markErr := p.eventStore.MarkEventAsFailed(ctx, event.ID, err); markErr != nil {
				log.Error().Err(markErr).Str("eventID", event.ID).Msg("Failed to record event error")
			}
			continue
		}

		if err := p.eventStore.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error().Err(err).Str("eventID", event.ID).Msg("Failed to mark event as processed")
			continue
		}
		p.metrics.ProjectedEvent(true)
		processed++
	}

	return processed, nil
}

func (p *EventProcessor) processEvent(ctx context.Context, event domain.Event) error {
	for _, projector := range p.projectors {
		if err := projector.Project(ctx, event); err != nil {
			return fmt.Errorf("%s: %w", projector.Name(), err)
		}
	}
	return nil
}
