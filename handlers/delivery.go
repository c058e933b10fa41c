package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/mailer"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/metrics"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
)

// Actor labels for audit entries written without an authenticated user
const (
	actorSystem = "system"
	actorClient = "client"
)

// DeliveryResult reports the delivery status after a command
type DeliveryResult struct {
	InvoiceID      uint                  `json:"invoice_id"`
	DeliveryStatus domain.DeliveryStatus `json:"delivery_status"`
	FailureReason  string                `json:"delivery_failure_reason,omitempty"`
	Message        string                `json:"message"`
}

// PublicInvoice is the recipient facing view of an invoice
type PublicInvoice struct {
	InvoiceNumber string               `json:"invoice_number"`
	ClientName    string               `json:"client_name"`
	IssueDate     time.Time            `json:"issue_date"`
	DueDate       time.Time            `json:"due_date"`
	Notes         string               `json:"notes,omitempty"`
	Items         []models.InvoiceItem `json:"items"`
	Subtotal      float64              `json:"subtotal"`
	Tax           float64              `json:"tax"`
	Total         float64              `json:"total"`
}

// DeliveryHandler drives the delivery state machine of approved invoices
type DeliveryHandler struct {
	repo    repository.Repository
	mailer  mailer.Mailer
	signer  *tracking.Signer
	from    string
	metrics *metrics.Metrics
	cache   InvoiceCache
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(repo repository.Repository, m mailer.Mailer, signer *tracking.Signer, from string, mt *metrics.Metrics) *DeliveryHandler {
	return &DeliveryHandler{
		repo:    repo,
		mailer:  m,
		signer:  signer,
		from:    from,
		metrics: mt,
	}
}

// WithCache invalidates cached invoice views after delivery changes
func (h *DeliveryHandler) WithCache(c InvoiceCache) *DeliveryHandler {
	h.cache = c
	return h
}

// requireApproved gates every delivery operation on approval
func requireApproved(invoice *models.Invoice) error {
	if domain.ApprovalStatus(invoice.ApprovalStatus) != domain.ApprovalApproved {
		return domain.NewValidationError("approval_status", "invoice must be approved before delivery")
	}
	return nil
}

// HandleSend emails an approved invoice for the first time
func (h *DeliveryHandler) HandleSend(ctx context.Context, actor domain.ActorContext, invoiceID uint) (*DeliveryResult, error) {
	defer tracing.StartSegment(ctx, "delivery.send").End()
	return h.dispatch(ctx, actor, invoiceID, false)
}

// HandleResend retries a failed delivery. Administrators only.
func (h *DeliveryHandler) HandleResend(ctx context.Context, actor domain.ActorContext, invoiceID uint) (*DeliveryResult, error) {
	defer tracing.StartSegment(ctx, "delivery.resend").End()
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return h.dispatch(ctx, actor, invoiceID, true)
}

func (h *DeliveryHandler) dispatch(ctx context.Context, actor domain.ActorContext, invoiceID uint, resend bool) (*DeliveryResult, error) {
	var msg mailer.Message
	var invoice *models.Invoice

	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		invoice, err = tx.FindInvoice(ctx, actor.TenantID, invoiceID)
		if err != nil {
			return notFound(err)
		}
		if err := requireApproved(invoice); err != nil {
			return err
		}
		msg, err = mailer.Compose(invoice, h.signer, h.from)
		if err != nil {
			return domain.NewValidationError("email", "invoice has no recipient email")
		}

		agg, err := loadDelivery(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		action := domain.AuditSent
		if resend {
			action = domain.AuditResent
			err = agg.Resend(invoice.Email, msg.MessageID, actor.UserID, now)
		} else {
			err = agg.Send(invoice.Email, msg.MessageID, actor.UserID, now)
		}
		if err != nil {
			return err
		}
		if err := tx.Events().Save(ctx, agg); err != nil {
			return fmt.Errorf("failed to save delivery event: %w", err)
		}
		return tx.AppendAuditLog(ctx, newAuditEntry(invoice, action, string(agg.State.EffectiveStatus()), actor.Label()))
	})
	if err != nil {
		return nil, err
	}

	sendErr := h.mailer.Send(ctx, msg)
	if sendErr != nil {
		log.Warn().Err(sendErr).Uint("invoiceID", invoice.ID).Str("to", msg.To).Msg("Invoice email failed")
		tracing.NoticeError(ctx, sendErr)
	}

	var result *DeliveryResult
	err = h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		agg, err := loadDelivery(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		var applied bool
		action := domain.AuditDelivered
		if sendErr != nil {
			action = domain.AuditDeliveryFailed
			applied, err = agg.ReportFailure(sendErr.Error(), domain.SourceMailer, now)
		} else {
			applied, err = agg.ConfirmDelivered(domain.SourceMailer, now)
		}
		if err != nil {
			return err
		}
		if applied {
			if err := tx.Events().Save(ctx, agg); err != nil {
				return fmt.Errorf("failed to save delivery event: %w", err)
			}
			if err := tx.AppendAuditLog(ctx, newAuditEntry(invoice, action, string(agg.State.EffectiveStatus()), actorSystem)); err != nil {
				return err
			}
		}

		result = &DeliveryResult{
			InvoiceID:      invoice.ID,
			DeliveryStatus: agg.State.EffectiveStatus(),
			FailureReason:  agg.State.FailureReason(),
			Message:        "Invoice sent to client",
		}
		if sendErr != nil {
			result.Message = "Invoice email could not be delivered"
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, h.cache, invoice.TenantID, invoice.ID)
	h.metrics.DeliveryEvent(string(result.DeliveryStatus), domain.SourceMailer)
	log.Info().
		Uint("invoiceID", invoice.ID).
		Bool("resend", resend).
		Str("deliveryStatus", string(result.DeliveryStatus)).
		Msg("Invoice dispatched")

	return result, nil
}

// HandleOverride sets the delivery status manually. Administrators only.
func (h *DeliveryHandler) HandleOverride(ctx context.Context, actor domain.ActorContext, invoiceID uint, status string) (*DeliveryResult, error) {
	defer tracing.StartSegment(ctx, "delivery.override").End()

	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	target, ok := domain.ParseDeliveryStatus(status)
	if !ok {
		return nil, domain.NewValidationError("status", "must be one of: pending delivered opened failed")
	}

	var result *DeliveryResult
	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		invoice, err := tx.FindInvoice(ctx, actor.TenantID, invoiceID)
		if err != nil {
			return notFound(err)
		}
		if err := requireApproved(invoice); err != nil {
			return err
		}

		agg, err := loadDelivery(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if err := agg.Override(target, actor.UserID, time.Now()); err != nil {
			return err
		}
		if err := tx.Events().Save(ctx, agg); err != nil {
			return fmt.Errorf("failed to save delivery event: %w", err)
		}
		if err := tx.AppendAuditLog(ctx, newAuditEntry(invoice, overrideAuditAction(target), string(agg.State.EffectiveStatus()), actor.Label())); err != nil {
			return err
		}

		result = &DeliveryResult{
			InvoiceID:      invoice.ID,
			DeliveryStatus: agg.State.EffectiveStatus(),
			FailureReason:  agg.State.FailureReason(),
			Message:        fmt.Sprintf("Delivery marked as %s", target),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, h.cache, actor.TenantID, invoiceID)
	h.metrics.DeliveryEvent(string(target), domain.SourceManual)
	return result, nil
}

func overrideAuditAction(target domain.DeliveryStatus) string {
	switch target {
	case domain.DeliveryStatusDelivered:
		return domain.AuditMarkedDelivered
	case domain.DeliveryStatusFailed:
		return domain.AuditMarkedFailed
	case domain.DeliveryStatusOpened:
		return domain.AuditMarkedOpened
	default:
		return domain.AuditMarkedPending
	}
}

// HandleTrackingPixel records an open from the tracking pixel. Invalid tokens,
// unknown invoices and unapproved invoices are ignored.
func (h *DeliveryHandler) HandleTrackingPixel(ctx context.Context, invoiceID uint, token, ip, userAgent string) error {
	if !h.signer.VerifyTracking(invoiceID, token) {
		log.Debug().Uint("invoiceID", invoiceID).Msg("Ignoring tracking pixel with invalid token")
		return nil
	}
	_, err := h.recordOpen(ctx, invoiceID, domain.SourcePixel, ip, userAgent)
	return err
}

// HandleViewLink returns the public view of an approved invoice and records
// an open. Unapproved invoices are reported as not found.
func (h *DeliveryHandler) HandleViewLink(ctx context.Context, invoiceID uint, token, ip, userAgent string) (*PublicInvoice, error) {
	if !h.signer.VerifyView(invoiceID, token) {
		return nil, domain.ErrForbidden
	}
	invoice, err := h.recordOpen(ctx, invoiceID, domain.SourceViewLink, ip, userAgent)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}

	return &PublicInvoice{
		InvoiceNumber: invoice.InvoiceNumber,
		ClientName:    invoice.ClientName,
		IssueDate:     invoice.IssueDate,
		DueDate:       invoice.DueDate,
		Notes:         invoice.Notes,
		Items:         invoice.Items,
		Subtotal:      invoice.Subtotal,
		Tax:           invoice.Tax,
		Total:         invoice.Total,
	}, nil
}

// recordOpen applies the first open of an approved invoice. It returns the
// invoice, or nil when it does not exist or is not approved.
func (h *DeliveryHandler) recordOpen(ctx context.Context, invoiceID uint, source, ip, userAgent string) (*models.Invoice, error) {
	var invoice *models.Invoice
	var applied bool

	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		invoice, err = tx.FindInvoiceByID(ctx, invoiceID)
		if err != nil {
			invoice = nil
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if requireApproved(invoice) != nil {
			invoice = nil
			return nil
		}

		agg, err := loadDelivery(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		applied, err = agg.RecordOpen(source, ip, userAgent, time.Now())
		if err != nil || !applied {
			return err
		}
		if err := tx.Events().Save(ctx, agg); err != nil {
			return fmt.Errorf("failed to save delivery event: %w", err)
		}
		return tx.AppendAuditLog(ctx, newAuditEntry(invoice, domain.AuditViewed, string(agg.State.EffectiveStatus()), actorClient))
	})
	if err != nil {
		return nil, err
	}

	if applied {
		invalidate(ctx, h.cache, invoice.TenantID, invoice.ID)
		h.metrics.DeliveryEvent(string(domain.DeliveryStatusOpened), source)
		log.Info().Uint("invoiceID", invoiceID).Str("source", source).Msg("Invoice opened by client")
	}
	return invoice, nil
}
