package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

// GormEventStore implements EventStore using GORM
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore creates a new GORM event store
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// WithTx returns a store bound to an open transaction
func (s *GormEventStore) WithTx(tx *gorm.DB) *GormEventStore {
	return &GormEventStore{db: tx}
}

// Save saves an aggregate's events to the store
func (s *GormEventStore) Save(ctx context.Context, aggregate domain.Aggregate) error {
	events := aggregate.GetEvents()
	if len(events) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			data, err := json.Marshal(event.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal event data: %w", err)
			}

			dbEvent := models.Event{
				EventID:       uuid.New().String(),
				AggregateID:   event.AggregateID,
				AggregateType: event.AggregateType,
				EventType:     event.Type,
				Data:          data,
				Version:       event.Version,
				Timestamp:     event.Timestamp,
				Processed:     false,
			}

			if err := tx.Create(&dbEvent).Error; err != nil {
				return fmt.Errorf("failed to save event: %w", err)
			}

			log.Debug().
				Str("aggregateType", event.AggregateType).
				Str("aggregateID", event.AggregateID).
				Str("eventType", event.Type).
				Int("version", event.Version).
				Msg("Event saved")
		}

		aggregate.ClearEvents()
		return nil
	})
}

// Load loads an aggregate from the store
func (s *GormEventStore) Load(ctx context.Context, aggregate domain.Aggregate) error {
	aggregateID := aggregate.GetID()
	if aggregateID == "" {
		return fmt.Errorf("aggregate ID is empty")
	}

	dbEvents, err := s.stream(ctx, aggregate.GetType(), aggregateID)
	if err != nil {
		return err
	}

	for _, dbEvent := range dbEvents {
		eventData, err := decodeEventData(dbEvent.EventType, dbEvent.Data)
		if err != nil {
			return err
		}
		if err := aggregate.Apply(eventData); err != nil {
			return fmt.Errorf("failed to apply event: %w", err)
		}
	}

	// Replayed events are already persisted
	aggregate.ClearEvents()
	return nil
}

// Exists checks if an aggregate exists
func (s *GormEventStore) Exists(ctx context.Context, aggregateType, aggregateID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check if aggregate exists: %w", err)
	}

	return count > 0, nil
}

// GetEvents gets all events for an aggregate
func (s *GormEventStore) GetEvents(ctx context.Context, aggregateType, aggregateID string) ([]domain.Event, error) {
	dbEvents, err := s.stream(ctx, aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}
	return toDomainEvents(dbEvents)
}

// GetUnprocessedEvents gets all unprocessed events in insertion order
func (s *GormEventStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	var dbEvents []models.Event
	if err := s.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&dbEvents).Error; err != nil {
		return nil, fmt.Errorf("failed to get unprocessed events: %w", err)
	}

	return toDomainEvents(dbEvents)
}

// MarkEventAsProcessed marks an event as processed
func (s *GormEventStore) MarkEventAsProcessed(ctx context.Context, eventID string) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":  true,
			"error":      nil,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	return nil
}

// MarkEventAsFailed stores the projection error on the event
func (s *GormEventStore) MarkEventAsFailed(ctx context.Context, eventID string, cause error) error {
	msg := cause.Error()
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"error":      &msg,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to record event error: %w", err)
	}

	return nil
}

func (s *GormEventStore) stream(ctx context.Context, aggregateType, aggregateID string) ([]models.Event, error) {
	var dbEvents []models.Event
	if err := s.db.WithContext(ctx).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Order("version ASC").
		Find(&dbEvents).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return dbEvents, nil
}

func toDomainEvents(dbEvents []models.Event) ([]domain.Event, error) {
	events := make([]domain.Event, len(dbEvents))
	for i, dbEvent := range dbEvents {
		data, err := decodeEventData(dbEvent.EventType, dbEvent.Data)
		if err != nil {
			return nil, err
		}
		events[i] = domain.Event{
			ID:            dbEvent.EventID,
			AggregateID:   dbEvent.AggregateID,
			AggregateType: dbEvent.AggregateType,
			Type:          dbEvent.EventType,
			Version:       dbEvent.Version,
			Timestamp:     dbEvent.Timestamp,
			Data:          data,
		}
	}
	return events, nil
}

// decodeEventData unmarshals a stored payload into its event struct
func decodeEventData(eventType string, raw []byte) (interface{}, error) {
	var target interface{}

	switch eventType {
	// Invoice events
	case domain.InvoiceCreated:
		var data domain.InvoiceCreatedEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.InvoiceResubmitted:
		var data domain.InvoiceResubmittedEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.InvoiceApprovalChanged:
		var data domain.ApprovalChangedEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data

	// Delivery events
	case domain.DeliverySent:
		var data domain.DeliverySentEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.DeliveryDelivered:
		var data domain.DeliveryDeliveredEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.DeliveryOpened:
		var data domain.DeliveryOpenedEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.DeliveryFailed:
		var data domain.DeliveryFailedEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.DeliveryResent:
		var data domain.DeliveryResentEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data
	case domain.DeliveryReset:
		var data domain.DeliveryResetEvent
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		target = data

	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	return target, nil
}
