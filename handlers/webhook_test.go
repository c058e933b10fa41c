package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

func providerEvent(event, messageID string) ProviderEventCommand {
	return ProviderEventCommand{
		Provider:  "SendGrid",
		Event:     event,
		Recipient: "Billing@Acme.test",
		MessageID: messageID,
		Payload:   []byte(`{}`),
	}
}

func TestProviderEventBounce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createApproved(t, draft())

	env.mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	_, err := env.delivery.HandleSend(ctx, employee, id)
	require.NoError(t, err)

	result, err := env.delivery.HandleProviderEvent(ctx, providerEvent("bounced", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, id, result.InvoiceID)
	assert.Equal(t, domain.DeliveryStatusFailed, result.DeliveryStatus)

	view, err := env.invoices.GetInvoice(ctx, employee, id)
	require.NoError(t, err)
	assert.Equal(t, BouncedReason, view.DeliveryFailureReason)

	// Replays are acknowledged once
	result, err = env.delivery.HandleProviderEvent(ctx, providerEvent("BOUNCED", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Equal(t, 1, env.deliveryEvents(t, id, domain.DeliveryFailed))

	var journal []models.WebhookEvent
	require.NoError(t, env.db.Find(&journal).Error)
	require.Len(t, journal, 1)
	assert.Equal(t, "sendgrid", journal[0].Provider)
	assert.Equal(t, OutcomeApplied, journal[0].Outcome)
	require.NotNil(t, journal[0].InvoiceID)
	assert.Equal(t, id, *journal[0].InvoiceID)
	assert.NotNil(t, journal[0].ProcessedAt)
}

func TestProviderEventOpenedWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createApproved(t, draft())

	result, err := env.delivery.HandleProviderEvent(ctx, providerEvent("OPENED", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusOpened, result.DeliveryStatus)

	for i, event := range []string{"DELIVERED", "BOUNCED", "COMPLAINT"} {
		result, err = env.delivery.HandleProviderEvent(ctx, providerEvent(event, "msg-"+string(rune('a'+i))))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, result.Outcome)
		assert.Equal(t, domain.DeliveryStatusOpened, result.DeliveryStatus)
	}
	assert.Equal(t, 1, env.deliveryEvents(t, id, domain.DeliveryOpened))
}

func TestProviderEventComplaintAfterDelivered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createApproved(t, draft())

	result, err := env.delivery.HandleProviderEvent(ctx, providerEvent("DELIVERED", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusDelivered, result.DeliveryStatus)

	result, err = env.delivery.HandleProviderEvent(ctx, providerEvent("COMPLAINT", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, domain.DeliveryStatusFailed, result.DeliveryStatus)
}

func TestProviderEventUnmatchedAndNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Pending invoices never match
	_, err := env.invoices.HandleCreateInvoice(ctx, employee, draft())
	require.NoError(t, err)

	result, err := env.delivery.HandleProviderEvent(ctx, providerEvent("DELIVERED", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, result.Outcome)

	result, err = env.delivery.HandleProviderEvent(ctx, providerEvent("PROCESSED", "msg-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)

	_, err = env.delivery.HandleProviderEvent(ctx, providerEvent("CLICKED", "msg-1"))
	requireValidationField(t, err, "event")
}

func TestParseProviderEventAliases(t *testing.T) {
	body := []byte(`{"type":"delivered","email":"ap@acme.test","sg_message_id":"sg-9"}`)

	cmd, err := ParseProviderEvent("sendgrid", body)
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", cmd.Provider)
	assert.Equal(t, "delivered", cmd.Event)
	assert.Equal(t, "ap@acme.test", cmd.Recipient)
	assert.Equal(t, "sg-9", cmd.MessageID)
	assert.Equal(t, body, cmd.Payload)

	cmd, err = ParseProviderEvent("", []byte(`{"provider":"postmark","event":"OPENED"}`))
	require.NoError(t, err)
	assert.Equal(t, "postmark", cmd.Provider)

	_, err = ParseProviderEvent("sendgrid", []byte(`[1,2]`))
	requireValidationField(t, err, "body")
}

func TestProviderEventRetriedAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createApproved(t, draft())

	env.mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	_, err := env.delivery.HandleSend(ctx, employee, id)
	require.NoError(t, err)

	// Make the event store unavailable for the first attempt
	require.NoError(t, env.db.Exec("ALTER TABLE events RENAME TO events_offline").Error)
	_, err = env.delivery.HandleProviderEvent(ctx, providerEvent("OPENED", "msg-7"))
	require.Error(t, err)
	require.NoError(t, env.db.Exec("ALTER TABLE events_offline RENAME TO events").Error)

	var journal models.WebhookEvent
	require.NoError(t, env.db.First(&journal).Error)
	assert.Equal(t, OutcomeError, journal.Outcome)
	require.NotNil(t, journal.Error)

	result, err := env.delivery.HandleProviderEvent(ctx, providerEvent("OPENED", "msg-7"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, domain.DeliveryStatusOpened, result.DeliveryStatus)
	assert.Equal(t, 1, env.deliveryEvents(t, id, domain.DeliveryOpened))

	require.NoError(t, env.db.First(&journal, journal.ID).Error)
	assert.Equal(t, OutcomeApplied, journal.Outcome)
	assert.Nil(t, journal.Error)

	// Once processed, replays are duplicates again
	result, err = env.delivery.HandleProviderEvent(ctx, providerEvent("OPENED", "msg-7"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)

	var count int64
	require.NoError(t, env.db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
