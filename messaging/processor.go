package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
)

// EventType definitions
const (
	DeliveryReport = "DeliveryReport"
)

// AzureBusMessage is the common message structure
type AzureBusMessage struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// DeliveryEventHandler applies provider delivery reports
type DeliveryEventHandler interface {
	HandleProviderEvent(ctx context.Context, cmd handlers.ProviderEventCommand) (*handlers.ProviderEventResult, error)
}

type Processor struct {
	deliveryHandler DeliveryEventHandler
}

func NewProcessor(deliveryHandler DeliveryEventHandler) *Processor {
	return &Processor{deliveryHandler: deliveryHandler}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	return p.Process(ctx, message.Body)
}

// Process handles one message body. Malformed or invalid reports are dropped
// so they are not redelivered forever.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Warn().Err(err).Msg("Dropping malformed message")
		return nil
	}

	log.Info().Str("eventType", msg.EventType).Msg("Processing message")

	switch msg.EventType {
	case DeliveryReport:
		cmd, err := handlers.ParseProviderEvent("", msg.Data)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping malformed delivery report")
			return nil
		}

		result, err := p.deliveryHandler.HandleProviderEvent(ctx, cmd)
		if err != nil {
			if _, ok := domain.AsValidationError(err); ok {
				log.Warn().Err(err).Msg("Dropping invalid delivery report")
				return nil
			}
			return fmt.Errorf("failed to apply delivery report: %w", err)
		}
		log.Info().
			Str("provider", cmd.Provider).
			Str("outcome", result.Outcome).
			Uint("invoiceID", result.InvoiceID).
			Msg("Delivery report processed")
		return nil

	default:
		log.Warn().Str("eventType", msg.EventType).Msg("Unknown event type")
		return nil
	}
}
