package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
)

type ApprovalActionCommand struct {
	Action string `json:"action" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// ApprovalResult is returned after a successful approval transition
type ApprovalResult struct {
	Message string          `json:"message"`
	Invoice *models.Invoice `json:"invoice"`
}

func currentApproval(invoice *models.Invoice) domain.ApprovalState {
	return domain.ApprovalState{
		Status:     domain.ApprovalStatus(invoice.ApprovalStatus),
		Reason:     invoice.ApprovalReason,
		ApproverID: invoice.ApproverID,
		ApprovedAt: invoice.ApprovalDate,
	}
}

func applyApproval(invoice *models.Invoice, state domain.ApprovalState) {
	invoice.ApprovalStatus = string(state.Status)
	invoice.ApprovalReason = state.Reason
	invoice.ApproverID = state.ApproverID
	invoice.ApprovalDate = state.ApprovedAt
}

// revalidate checks the stored items and dates before an invoice goes back to pending
func revalidate(invoice *models.Invoice) error {
	verr := domain.ValidateItems(toLineItems(invoice.Items))
	verr.Merge(domain.ValidateDates(invoice.IssueDate, invoice.DueDate))
	return verr.OrNil()
}

// HandleApprovalAction applies approve, reject, hold, acknowledge or resend
// to an invoice. Status, audit entry and outbox event commit together.
func (h *InvoiceHandler) HandleApprovalAction(ctx context.Context, actor domain.ActorContext, invoiceID uint, cmd ApprovalActionCommand) (*ApprovalResult, error) {
	defer tracing.StartSegment(ctx, "invoice.approval").End()

	action, ok := domain.ParseApprovalAction(cmd.Action)
	if !ok {
		return nil, domain.NewValidationError("action", "must be one of: approve reject hold acknowledge resend")
	}
	if verr := validationFrom(cmd); verr.HasErrors() {
		return nil, verr
	}
	if err := domain.AuthorizeApproval(actor, action); err != nil {
		return nil, err
	}

	var invoice *models.Invoice
	var from domain.ApprovalStatus
	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		invoice, err = tx.FindInvoice(ctx, actor.TenantID, invoiceID)
		if err != nil {
			return notFound(err)
		}

		current := currentApproval(invoice)
		from = current.Status
		next, err := domain.DecideApproval(current, action, actor, cmd.Reason, time.Now())
		if err != nil {
			return err
		}
		if action == domain.ActionResend {
			if err := revalidate(invoice); err != nil {
				return err
			}
		}
		applyApproval(invoice, next)

		if err := tx.UpdateInvoice(ctx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if err := tx.AppendAuditLog(ctx, newAuditEntry(invoice, domain.AuditActionFor(action), invoice.ApprovalStatus, actor.Label())); err != nil {
			return fmt.Errorf("failed to append audit log: %w", err)
		}

		return recordInvoiceEvent(ctx, tx, invoice.ID, domain.ApprovalChangedEvent{
			InvoiceID: invoice.ID,
			TenantID:  invoice.TenantID,
			From:      from,
			To:        next.Status,
			Action:    action,
			Reason:    next.Reason,
			ActorID:   actor.UserID,
			At:        time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, h.cache, invoice.TenantID, invoice.ID)
	h.metrics.ApprovalTransition(string(action))
	log.Info().
		Uint("invoiceID", invoice.ID).
		Str("action", string(action)).
		Str("from", string(from)).
		Str("to", invoice.ApprovalStatus).
		Msg("Invoice approval changed")

	return &ApprovalResult{
		Message: domain.ApprovalMessage(action),
		Invoice: invoice,
	}, nil
}
