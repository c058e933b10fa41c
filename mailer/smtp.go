package mailer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
)

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer creates an SMTP transport
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// client builds a relay client. STARTTLS is used when the relay offers it.
func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.SMTPPort > 0 {
		opts = append(opts, mail.WithPort(m.cfg.SMTPPort))
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}
	if m.cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUsername),
			mail.WithPassword(m.cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid smtp settings")
	}
	return client, nil
}

// Send delivers msg within the configured timeout
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	email, err := buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := m.client()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		return errors.Wrap(err, "smtp delivery failed")
	}

	log.Info().
		Uint("invoiceID", msg.InvoiceID).
		Str("messageID", msg.MessageID).
		Msg("Invoice email sent via SMTP")

	return nil
}

// buildMessage renders a multipart/alternative message with encoded headers
func buildMessage(msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()
	if err := email.From(msg.From); err != nil {
		return nil, errors.Wrap(err, "invalid sender address")
	}
	if err := email.To(msg.To); err != nil {
		return nil, errors.Wrap(err, "invalid recipient address")
	}
	email.Subject(msg.Subject)
	if msg.MessageID != "" {
		email.SetMessageIDWithValue(msg.MessageID)
	}
	email.SetDate()
	email.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	email.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	return email, nil
}
