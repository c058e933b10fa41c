package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
)

const receiveBatchSize = 10

type AzureClient struct {
	client *azservicebus.Client
}

func NewAzureClient(cfg config.AzureConfig) (*AzureClient, error) {
	if cfg.QueueConnStr == "" {
		return nil, fmt.Errorf("azure service bus connection string is empty")
	}
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	return &AzureClient{client: client}, nil
}

// NewSender creates a publisher for a queue
func (a *AzureClient) NewSender(queueName, source string) (*ServiceBusSender, error) {
	sender, err := a.client.NewSender(queueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}
	return &ServiceBusSender{sender: sender, queueName: queueName, source: source}, nil
}

// StartConsumer receives messages from a queue until ctx is cancelled.
// Messages that fail processing are abandoned for redelivery.
func (a *AzureClient) StartConsumer(ctx context.Context, queueName string, processor MessageProcessor) error {
	receiver, err := a.client.NewReceiverForQueue(queueName, nil)
	if err != nil {
		return fmt.Errorf("failed to create Service Bus receiver: %w", err)
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("queue", queueName).Msg("Error closing receiver")
		}
	}()

	log.Info().Msgf("Starting consumer for queue %s", queueName)

	for {
		messages, err := receiver.ReceiveMessages(ctx, receiveBatchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Str("queue", queueName).Msg("Consumer stopped")
				return nil
			}
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeConnectionLost {
				log.Warn().Err(err).Str("queue", queueName).Msg("Connection lost, retrying")
				time.Sleep(2 * time.Second)
				continue
			}
			return fmt.Errorf("error receiving messages from %s: %w", queueName, err)
		}

		if len(messages) > 0 {
			log.Debug().Msgf("Received %d messages from queue '%s'", len(messages), queueName)
		}

		for _, message := range messages {
			if err := processor.ProcessMessage(ctx, message); err != nil {
				log.Error().Err(err).Msgf("Error processing message '%s'", message.MessageID)
				if err := receiver.AbandonMessage(context.Background(), message, nil); err != nil {
					log.Error().Err(err).Msgf("(AbandonMessage) err: %v", err)
				}
				continue
			}

			if err := receiver.CompleteMessage(context.Background(), message, nil); err != nil {
				log.Error().Err(err).Msgf("(CompleteMessage) err: %v", err)
			}
		}
	}
}

func (a *AzureClient) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}
