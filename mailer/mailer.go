package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
)

// Transports
const (
	TransportSMTP       = "smtp"
	TransportServiceBus = "servicebus"
)

// Message is an outbound invoice email
type Message struct {
	MessageID     string `json:"message_id"`
	InvoiceID     uint   `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	From          string `json:"from"`
	To            string `json:"to"`
	Subject       string `json:"subject"`
	TextBody      string `json:"text_body"`
	HTMLBody      string `json:"html_body"`
}

// Mailer delivers invoice emails
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Publisher sends a message body to a queue
type Publisher interface {
	SendMessage(ctx context.Context, body interface{}) error
}

// New builds the configured transport
func New(cfg config.MailConfig, queue Publisher) (Mailer, error) {
	switch strings.ToLower(cfg.Transport) {
	case TransportSMTP, "":
		return NewSMTPMailer(cfg), nil
	case TransportServiceBus:
		if queue == nil {
			return nil, errors.New("service bus mail transport requires a queue publisher")
		}
		return NewQueueMailer(queue, cfg.Timeout), nil
	default:
		return nil, errors.Errorf("unsupported mail transport %q", cfg.Transport)
	}
}

// withTimeout bounds a transport call
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

var htmlTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Invoice {{.Invoice.InvoiceNumber}}</h2>
  <p>Dear {{.Invoice.ClientName}},</p>
  <p>Please find your invoice details below.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Description</th><th align="right">Qty</th><th align="right">Rate</th><th align="right">Total</th></tr>
    {{range .Invoice.Items}}<tr><td>{{.Description}}</td><td align="right">{{printf "%.2f" .Quantity}}</td><td align="right">{{printf "%.2f" .Rate}}</td><td align="right">{{printf "%.2f" .Total}}</td></tr>
    {{end}}
  </table>
  <p>Subtotal: {{printf "%.2f" .Invoice.Subtotal}}<br>Tax: {{printf "%.2f" .Invoice.Tax}}<br><strong>Total: {{printf "%.2f" .Invoice.Total}}</strong></p>
  <p>Due date: {{.Invoice.DueDate.Format "2006-01-02"}}</p>
  <p><a href="{{.ViewURL}}">View your invoice online</a></p>
  <img src="{{.PixelURL}}" width="1" height="1" alt="" style="display:none;">
</body>
</html>`))

// Compose builds the email for an invoice with its tracking pixel and view link
func Compose(invoice *models.Invoice, signer *tracking.Signer, from string) (Message, error) {
	if strings.TrimSpace(invoice.Email) == "" {
		return Message{}, errors.New("invoice has no recipient email")
	}

	var html bytes.Buffer
	err := htmlTemplate.Execute(&html, struct {
		Invoice  *models.Invoice
		PixelURL string
		ViewURL  string
	}{
		Invoice:  invoice,
		PixelURL: signer.PixelURL(invoice.ID),
		ViewURL:  signer.ViewURL(invoice.ID),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "failed to render invoice email")
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Invoice %s\n\nDear %s,\n\n", invoice.InvoiceNumber, invoice.ClientName)
	for _, item := range invoice.Items {
		fmt.Fprintf(&text, "- %s: %.2f x %.2f = %.2f\n", item.Description, item.Quantity, item.Rate, item.Total)
	}
	fmt.Fprintf(&text, "\nSubtotal: %.2f\nTax: %.2f\nTotal: %.2f\nDue date: %s\n\nView online: %s\n",
		invoice.Subtotal, invoice.Tax, invoice.Total, invoice.DueDate.Format("2006-01-02"), signer.ViewURL(invoice.ID))

	return Message{
		MessageID:     uuid.New().String(),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		From:          from,
		To:            invoice.Email,
		Subject:       fmt.Sprintf("Invoice %s", invoice.InvoiceNumber),
		TextBody:      text.String(),
		HTMLBody:      html.String(),
	}, nil
}
