package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/utils"
)

// Provider event names
const (
	ProviderDelivered = "DELIVERED"
	ProviderOpened    = "OPENED"
	ProviderBounced   = "BOUNCED"
	ProviderComplaint = "COMPLAINT"
	ProviderProcessed = "PROCESSED"
)

// Failure reasons recorded for provider reports
const (
	BouncedReason   = "Email bounced"
	ComplaintReason = "Marked as spam"
)

// Webhook outcomes
const (
	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeUnmatched = "unmatched"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// ProviderEventCommand is a delivery report from an email provider
type ProviderEventCommand struct {
	Provider  string `json:"provider"`
	Event     string `json:"event"`
	Recipient string `json:"recipient_email"`
	MessageID string `json:"message_id"`
	Payload   []byte `json:"-"`
}

// ProviderEventResult describes what a provider event did
type ProviderEventResult struct {
	Outcome        string                `json:"outcome"`
	InvoiceID      uint                  `json:"invoice_id,omitempty"`
	DeliveryStatus domain.DeliveryStatus `json:"delivery_status,omitempty"`
}

// maxJournalError bounds the processing error stored with a journal row
const maxJournalError = 500

// ParseProviderEvent reads a provider report body. Providers disagree on
// field names, so a few common aliases are accepted.
func ParseProviderEvent(provider string, body []byte) (ProviderEventCommand, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return ProviderEventCommand{}, domain.NewValidationError("body", "must be a JSON object")
	}

	if provider == "" {
		provider = utils.FirstStringValue(data, "provider")
	}

	return ProviderEventCommand{
		Provider:  provider,
		Event:     utils.FirstStringValue(data, "event", "event_type", "type"),
		Recipient: utils.FirstStringValue(data, "recipient_email", "email", "recipient"),
		MessageID: utils.FirstStringValue(data, "message_id", "sg_message_id", "id"),
		Payload:   body,
	}, nil
}

// needsRetry reports whether a journaled event never finished processing.
// Delivery transitions are idempotent, so reapplying is safe.
func needsRetry(journal *models.WebhookEvent) bool {
	return journal.Outcome == OutcomeError || journal.ProcessedAt == nil
}

// HandleProviderEvent journals a provider report and applies it to the latest
// approved invoice of the recipient. Replays of an event that was processed
// are acknowledged without effect; replays of a failed one are reprocessed.
func (h *DeliveryHandler) HandleProviderEvent(ctx context.Context, cmd ProviderEventCommand) (*ProviderEventResult, error) {
	defer tracing.StartSegment(ctx, "delivery.provider_event").End()

	event := strings.ToUpper(strings.TrimSpace(cmd.Event))
	switch event {
	case ProviderDelivered, ProviderOpened, ProviderBounced, ProviderComplaint, ProviderProcessed:
	default:
		return nil, domain.NewValidationError("event", "unsupported provider event")
	}
	provider := strings.ToLower(strings.TrimSpace(cmd.Provider))
	messageID := strings.TrimSpace(cmd.MessageID)
	if messageID == "" {
		messageID = uuid.New().String()
	}

	journal := &models.WebhookEvent{
		Provider:  provider,
		MessageID: messageID,
		EventType: event,
		Recipient: strings.TrimSpace(cmd.Recipient),
		Payload:   cmd.Payload,
	}
	if err := h.repo.SaveWebhookEvent(ctx, journal); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to journal provider event: %w", err)
		}
		existing, ferr := h.repo.FindWebhookEvent(ctx, provider, messageID, event)
		if ferr != nil {
			return nil, fmt.Errorf("failed to load journaled provider event: %w", ferr)
		}
		if !needsRetry(existing) {
			log.Info().Str("provider", provider).Str("messageID", messageID).Str("event", event).Msg("Duplicate provider event acknowledged")
			h.metrics.WebhookCallback(provider, OutcomeDuplicate)
			return &ProviderEventResult{Outcome: OutcomeDuplicate}, nil
		}
		log.Info().Str("provider", provider).Str("messageID", messageID).Str("event", event).Msg("Retrying provider event")
		journal = existing
	}

	result, err := h.applyProviderEvent(ctx, event, journal.Recipient)
	if err != nil {
		cause := utils.Truncate(err.Error(), maxJournalError)
		journal.Outcome = OutcomeError
		journal.Error = &cause
	} else {
		journal.Outcome = result.Outcome
		journal.Error = nil
		if result.InvoiceID != 0 {
			invoiceID := result.InvoiceID
			journal.InvoiceID = &invoiceID
		}
	}
	processedAt := time.Now().UTC()
	journal.ProcessedAt = &processedAt
	if uerr := h.repo.UpdateWebhookEvent(ctx, journal); uerr != nil {
		log.Error().Err(uerr).Uint("webhookEventID", journal.ID).Msg("Failed to update webhook journal")
	}

	h.metrics.WebhookCallback(provider, journal.Outcome)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *DeliveryHandler) applyProviderEvent(ctx context.Context, event, recipient string) (*ProviderEventResult, error) {
	result := &ProviderEventResult{Outcome: OutcomeIgnored}
	var tenantID uint
	if event == ProviderProcessed {
		return result, nil
	}
	if recipient == "" {
		result.Outcome = OutcomeUnmatched
		return result, nil
	}

	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		invoice, err := tx.FindLatestApprovedInvoiceByEmail(ctx, recipient)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.Outcome = OutcomeUnmatched
				return nil
			}
			return err
		}
		result.InvoiceID = invoice.ID
		tenantID = invoice.TenantID

		agg, err := loadDelivery(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		var applied bool
		var action, actor string
		switch event {
		case ProviderDelivered:
			action, actor = domain.AuditDelivered, actorSystem
			applied, err = agg.ConfirmDelivered(domain.SourceProvider, now)
		case ProviderOpened:
			action, actor = domain.AuditViewed, actorClient
			applied, err = agg.RecordOpen(domain.SourceProvider, "", "", now)
		case ProviderBounced:
			action, actor = domain.AuditDeliveryFailed, actorSystem
			applied, err = agg.ReportFailure(BouncedReason, domain.SourceProvider, now)
		case ProviderComplaint:
			action, actor = domain.AuditDeliveryFailed, actorSystem
			applied, err = agg.ReportFailure(ComplaintReason, domain.SourceProvider, now)
		}
		if err != nil {
			return err
		}
		result.DeliveryStatus = agg.State.EffectiveStatus()
		if !applied {
			return nil
		}

		if err := tx.Events().Save(ctx, agg); err != nil {
			return fmt.Errorf("failed to save delivery event: %w", err)
		}
		result.Outcome = OutcomeApplied
		return tx.AppendAuditLog(ctx, newAuditEntry(invoice, action, string(result.DeliveryStatus), actor))
	})
	if err != nil {
		return nil, err
	}

	if result.Outcome == OutcomeApplied {
		invalidate(ctx, h.cache, tenantID, result.InvoiceID)
		h.metrics.DeliveryEvent(string(result.DeliveryStatus), domain.SourceProvider)
		log.Info().Uint("invoiceID", result.InvoiceID).Str("event", event).Msg("Provider event applied")
	}
	return result, nil
}
