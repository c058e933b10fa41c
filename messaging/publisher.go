package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
)

// Publisher sends a message body to a queue
type Publisher interface {
	SendMessage(ctx context.Context, body interface{}) error
}

// ServiceBusSender publishes JSON messages to one queue
type ServiceBusSender struct {
	sender    *azservicebus.Sender
	queueName string
	source    string
}

// SendMessage sends a message to the Service Bus queue
func (s *ServiceBusSender) SendMessage(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": s.source,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", s.queueName, err)
	}
	return nil
}

func (s *ServiceBusSender) Close(ctx context.Context) error {
	return s.sender.Close(ctx)
}

// Notification is the outbound form of a stored event
type Notification struct {
	EventType     string      `json:"eventType"`
	EventID       string      `json:"eventId"`
	AggregateType string      `json:"aggregateType"`
	AggregateID   string      `json:"aggregateId"`
	Version       int         `json:"version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// EventPublisher relays stored events to the notifications queue
type EventPublisher struct {
	queue Publisher
}

func NewEventPublisher(queue Publisher) *EventPublisher {
	return &EventPublisher{queue: queue}
}

func (p *EventPublisher) Name() string {
	return "servicebus"
}

// Project publishes one event
func (p *EventPublisher) Project(ctx context.Context, event domain.Event) error {
	return p.queue.SendMessage(ctx, Notification{
		EventType:     event.Type,
		EventID:       event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Version:       event.Version,
		Timestamp:     event.Timestamp,
		Data:          event.Data,
	})
}
