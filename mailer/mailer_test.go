package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) SendMessage(ctx context.Context, body interface{}) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

type blockingPublisher struct{}

func (blockingPublisher) SendMessage(ctx context.Context, body interface{}) error {
	<-ctx.Done()
	return ctx.Err()
}

func testInvoice() *models.Invoice {
	return &models.Invoice{
		ID:            12,
		InvoiceNumber: "INV-2026-012",
		ClientName:    "Acme <Ltd>",
		Email:         "billing@acme.test",
		DueDate:       time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:      100,
		Tax:           9,
		Total:         109,
		Items:         []models.InvoiceItem{{Description: "Consulting", Quantity: 1, Rate: 100, Total: 100}},
	}
}

func TestComposeEmbedsTrackingLinks(t *testing.T) {
	signer := tracking.NewSigner("secret", "https://billing.test")

	msg, err := Compose(testInvoice(), signer, "invoices@billing.test")
	require.NoError(t, err)

	assert.Equal(t, "billing@acme.test", msg.To)
	assert.Equal(t, "Invoice INV-2026-012", msg.Subject)
	assert.NotEmpty(t, msg.MessageID)
	assert.Contains(t, msg.HTMLBody, signer.PixelURL(12))
	assert.Contains(t, msg.HTMLBody, signer.ViewURL(12))
	assert.Contains(t, msg.HTMLBody, "Acme &lt;Ltd&gt;")
	assert.Contains(t, msg.TextBody, "Total: 109.00")
}

func TestComposeRequiresEmail(t *testing.T) {
	invoice := testInvoice()
	invoice.Email = " "
	_, err := Compose(invoice, tracking.NewSigner("s", ""), "from@test")
	assert.Error(t, err)
}

func TestQueueMailerPublishesEnvelope(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("SendMessage", mock.Anything, mock.MatchedBy(func(body interface{}) bool {
		envelope, ok := body.(map[string]interface{})
		return ok && envelope["EventType"] == "SendInvoiceEmail"
	})).Return(nil).Once()

	m := NewQueueMailer(pub, time.Second)
	require.NoError(t, m.Send(context.Background(), Message{InvoiceID: 1, To: "a@b.c"}))
	pub.AssertExpectations(t)
}

func TestQueueMailerWrapsErrors(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("SendMessage", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	err := NewQueueMailer(pub, time.Second).Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus down")
}

func TestQueueMailerHonoursTimeout(t *testing.T) {
	m := NewQueueMailer(blockingPublisher{}, 20*time.Millisecond)

	start := time.Now()
	err := m.Send(context.Background(), Message{})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewSelectsTransport(t *testing.T) {
	m, err := New(config.MailConfig{Transport: "smtp"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	m, err = New(config.MailConfig{Transport: "servicebus"}, new(mockPublisher))
	require.NoError(t, err)
	assert.IsType(t, &QueueMailer{}, m)

	_, err = New(config.MailConfig{Transport: "servicebus"}, nil)
	assert.Error(t, err)

	_, err = New(config.MailConfig{Transport: "pigeon"}, nil)
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	email, err := buildMessage(Message{
		MessageID: "abc",
		From:      "from@test",
		To:        "to@test",
		Subject:   "Rechnung für Müller",
		TextBody:  "plain",
		HTMLBody:  "<p>html</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = email.WriteTo(&buf)
	require.NoError(t, err)

	s := buf.String()
	assert.Contains(t, s, "Message-ID: <abc>")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "plain")
	assert.Contains(t, s, "<p>html</p>")
	// Non-ASCII subjects are RFC 2047 encoded
	assert.Contains(t, s, "Subject: =?UTF-8?")
	assert.NotContains(t, s, "Müller")

	_, err = buildMessage(Message{From: "from@test", To: "not an address"})
	assert.Error(t, err)
}

func TestSMTPMailerReportsDialFailure(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1, Timeout: time.Second})
	err := m.Send(context.Background(), Message{From: "a@test", To: "b@test"})
	assert.Error(t, err)
}
