package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Aggregate types
const (
	AggregateTypeInvoice  = "invoice"
	AggregateTypeDelivery = "delivery"
)

// AggregateBase provides common aggregate functionality
type AggregateBase struct {
	id            string
	aggregateType string
	version       int
	events        []Event
	applier       func(event interface{}) error
}

// Aggregate is the interface for all aggregates
type Aggregate interface {
	GetID() string
	GetType() string
	GetVersion() int
	GetEvents() []Event
	ClearEvents()
	Apply(event interface{}) error
}

// NewAggregateBase creates a new aggregate base
func NewAggregateBase(aggregateType string, applier func(interface{}) error) *AggregateBase {
	return &AggregateBase{
		aggregateType: aggregateType,
		events:        []Event{},
		applier:       applier,
	}
}

// AggregateID formats an invoice id as an aggregate id
func AggregateID(invoiceID uint) string {
	return strconv.FormatUint(uint64(invoiceID), 10)
}

// ParseAggregateID is the inverse of AggregateID
func ParseAggregateID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid aggregate id %q", id)
	}
	return uint(n), nil
}

// GetID returns the aggregate ID
func (a *AggregateBase) GetID() string {
	return a.id
}

// SetID sets the aggregate ID
func (a *AggregateBase) SetID(id string) {
	a.id = id
}

// GetType returns the aggregate type
func (a *AggregateBase) GetType() string {
	return a.aggregateType
}

// GetVersion returns the aggregate version
func (a *AggregateBase) GetVersion() int {
	return a.version
}

// GetEvents returns the uncommitted events
func (a *AggregateBase) GetEvents() []Event {
	return a.events
}

// ClearEvents clears the uncommitted events
func (a *AggregateBase) ClearEvents() {
	a.events = []Event{}
}

// Apply applies an event to the aggregate and records it as uncommitted
func (a *AggregateBase) Apply(event interface{}) error {
	if a.applier == nil {
		return fmt.Errorf("applier is not set")
	}

	eventType, err := EventTypeOf(event)
	if err != nil {
		return err
	}

	if err := a.applier(event); err != nil {
		return fmt.Errorf("failed to apply event: %w", err)
	}

	a.events = append(a.events, Event{
		AggregateID:   a.id,
		AggregateType: a.aggregateType,
		Type:          eventType,
		Version:       a.version + 1,
		Timestamp:     time.Now().UTC(),
		Data:          event,
	})
	a.version++

	return nil
}

// EventTypeOf maps an event payload to its stored type name
func EventTypeOf(event interface{}) (string, error) {
	switch event.(type) {
	// Invoice events
	case InvoiceCreatedEvent:
		return InvoiceCreated, nil
	case InvoiceResubmittedEvent:
		return InvoiceResubmitted, nil
	case ApprovalChangedEvent:
		return InvoiceApprovalChanged, nil

	// Delivery events
	case DeliverySentEvent:
		return DeliverySent, nil
	case DeliveryDeliveredEvent:
		return DeliveryDelivered, nil
	case DeliveryOpenedEvent:
		return DeliveryOpened, nil
	case DeliveryFailedEvent:
		return DeliveryFailed, nil
	case DeliveryResentEvent:
		return DeliveryResent, nil
	case DeliveryResetEvent:
		return DeliveryReset, nil
	default:
		return "", fmt.Errorf("unknown event type: %T", event)
	}
}
