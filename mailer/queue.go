package mailer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// QueueMailer hands invoice emails to a mail relay through a queue
type QueueMailer struct {
	queue   Publisher
	timeout time.Duration
}

// NewQueueMailer creates a queue backed transport
func NewQueueMailer(queue Publisher, timeout time.Duration) *QueueMailer {
	return &QueueMailer{queue: queue, timeout: timeout}
}

// Send enqueues msg within the configured timeout
func (m *QueueMailer) Send(ctx context.Context, msg Message) error {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	envelope := map[string]interface{}{
		"EventType": "SendInvoiceEmail",
		"Data":      msg,
	}
	if err := m.queue.SendMessage(ctx, envelope); err != nil {
		return errors.Wrap(err, "failed to enqueue invoice email")
	}

	log.Info().
		Uint("invoiceID", msg.InvoiceID).
		Str("messageID", msg.MessageID).
		Msg("Invoice email queued")
	return nil
}
