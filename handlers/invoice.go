package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/cache"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/metrics"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracing"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
)

// Command structs
type CreateInvoiceCommand struct {
	ClientID      *uint             `json:"client_id"`
	ClientName    string            `json:"client_name" validate:"max=80"`
	Email         string            `json:"email" validate:"omitempty,email,max=120"`
	Phone         string            `json:"phone" validate:"max=32"`
	Address       string            `json:"address" validate:"max=200"`
	InvoiceNumber string            `json:"invoice_number" validate:"max=32"`
	IssueDate     string            `json:"issue_date" validate:"required"`
	DueDate       string            `json:"due_date" validate:"required"`
	Notes         string            `json:"notes" validate:"max=2000"`
	Items         []domain.LineItem `json:"items"`
}

type ResubmitInvoiceCommand struct {
	ClientName string            `json:"client_name" validate:"required,max=80"`
	Email      string            `json:"email" validate:"omitempty,email,max=120"`
	Phone      string            `json:"phone" validate:"max=32"`
	Address    string            `json:"address" validate:"max=200"`
	IssueDate  string            `json:"issue_date" validate:"required"`
	DueDate    string            `json:"due_date" validate:"required"`
	Notes      string            `json:"notes" validate:"max=2000"`
	Items      []domain.LineItem `json:"items"`
}

// InvoiceView is an invoice with its derived delivery state
type InvoiceView struct {
	models.Invoice
	DeliveryStatus        domain.DeliveryStatus  `json:"delivery_status"`
	DeliveryFailureReason string                 `json:"delivery_failure_reason,omitempty"`
	OpenedAt              *time.Time             `json:"opened_at,omitempty"`
	DeliveryLog           []domain.DeliveryEntry `json:"delivery_log"`
	TrackingURL           string                 `json:"tracking_url"`
	ViewURL               string                 `json:"view_url"`
}

// HistoryEntry is one event of an invoice timeline
type HistoryEntry struct {
	Stream    string      `json:"stream"`
	Type      string      `json:"type"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ListInvoicesQuery filters invoice listings
type ListInvoicesQuery struct {
	ApprovalStatus string
	DeliveryStatus string
	Limit          int
	Offset         int
}

// InvoiceHandler handles invoice commands and queries
type InvoiceHandler struct {
	repo    repository.Repository
	signer  *tracking.Signer
	metrics *metrics.Metrics
	cache   InvoiceCache
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(repo repository.Repository, signer *tracking.Signer, m *metrics.Metrics) *InvoiceHandler {
	return &InvoiceHandler{
		repo:    repo,
		signer:  signer,
		metrics: m,
	}
}

// WithCache enables read-through caching of invoice views
func (h *InvoiceHandler) WithCache(c InvoiceCache) *InvoiceHandler {
	h.cache = c
	return h
}

// parseDraft validates dates and items shared by create and resubmit
func parseDraft(verr *domain.ValidationError, issueRaw, dueRaw string, items []domain.LineItem) (time.Time, time.Time) {
	var issue, due time.Time
	var dateErr *domain.ValidationError

	if _, exists := verr.Fields["issue_date"]; !exists {
		if issue, dateErr = domain.ParseDate("issue_date", issueRaw); dateErr != nil {
			verr.Merge(dateErr)
		}
	}
	if _, exists := verr.Fields["due_date"]; !exists {
		if due, dateErr = domain.ParseDate("due_date", dueRaw); dateErr != nil {
			verr.Merge(dateErr)
		}
	}
	if !issue.IsZero() && !due.IsZero() {
		verr.Merge(domain.ValidateDates(issue, due))
	}
	verr.Merge(domain.ValidateItems(items))
	return issue, due
}

// HandleCreateInvoice validates and persists a new invoice in pending approval
func (h *InvoiceHandler) HandleCreateInvoice(ctx context.Context, actor domain.ActorContext, cmd CreateInvoiceCommand) (*models.Invoice, error) {
	defer tracing.StartSegment(ctx, "invoice.create").End()

	verr := validationFrom(cmd)
	issue, due := parseDraft(verr, cmd.IssueDate, cmd.DueDate, cmd.Items)
	phone, phoneErr := domain.NormalizePhone(cmd.Phone)
	verr.Merge(phoneErr)
	if verr.HasErrors() {
		return nil, verr
	}

	totals := domain.ComputeTotals(cmd.Items)
	invoice := &models.Invoice{
		TenantID:       actor.TenantID,
		ClientID:       cmd.ClientID,
		ClientName:     strings.TrimSpace(cmd.ClientName),
		Email:          strings.TrimSpace(cmd.Email),
		Phone:          phone,
		Address:        strings.TrimSpace(cmd.Address),
		IssueDate:      issue,
		DueDate:        due,
		Notes:          cmd.Notes,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Total:          totals.Total,
		ApprovalStatus: string(domain.ApprovalPending),
		CreatedBy:      actor.UserID,
		Items:          toModelItems(cmd.Items),
	}

	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		if cmd.ClientID != nil {
			client, err := tx.FindClient(ctx, actor.TenantID, *cmd.ClientID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.NewValidationError("client_id", "client not found")
				}
				return err
			}
			applyClientSnapshot(invoice, client)
		}
		if invoice.ClientName == "" {
			return domain.NewValidationError("client_name", "is required")
		}

		number := strings.TrimSpace(cmd.InvoiceNumber)
		if number == "" {
			last, err := tx.LastInvoiceSequence(ctx, actor.TenantID, issue.Year())
			if err != nil {
				return err
			}
			number = domain.FormatInvoiceNumber(issue.Year(), last+1)
		}
		exists, err := tx.InvoiceNumberExists(ctx, actor.TenantID, number)
		if err != nil {
			return err
		}
		if exists {
			return domain.NewValidationError("invoice_number", "invoice number already exists")
		}
		invoice.InvoiceNumber = number

		if err := tx.CreateInvoice(ctx, invoice); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return domain.NewValidationError("invoice_number", "invoice number already exists")
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		for _, action := range []string{domain.AuditCreated, domain.AuditSubmitted} {
			if err := tx.AppendAuditLog(ctx, newAuditEntry(invoice, action, invoice.ApprovalStatus, actor.Label())); err != nil {
				return fmt.Errorf("failed to append audit log: %w", err)
			}
		}

		return recordInvoiceEvent(ctx, tx, invoice.ID, domain.InvoiceCreatedEvent{
			InvoiceID:     invoice.ID,
			TenantID:      invoice.TenantID,
			InvoiceNumber: invoice.InvoiceNumber,
			ClientName:    invoice.ClientName,
			Total:         invoice.Total,
			ActorID:       actor.UserID,
			At:            time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("invoiceID", invoice.ID).
		Str("invoiceNumber", invoice.InvoiceNumber).
		Uint("tenantID", invoice.TenantID).
		Msg("Invoice created")

	return invoice, nil
}

// applyClientSnapshot fills billing fields the request left empty
func applyClientSnapshot(invoice *models.Invoice, client *models.Client) {
	if invoice.ClientName == "" {
		invoice.ClientName = client.Name
	}
	if invoice.Email == "" {
		invoice.Email = client.Email
	}
	if invoice.Phone == "" {
		invoice.Phone = client.Phone
	}
	if invoice.Address == "" {
		invoice.Address = client.Address
	}
}

// HandleResubmitInvoice edits a rejected or held invoice and returns it to pending
func (h *InvoiceHandler) HandleResubmitInvoice(ctx context.Context, actor domain.ActorContext, invoiceID uint, cmd ResubmitInvoiceCommand) (*models.Invoice, error) {
	defer tracing.StartSegment(ctx, "invoice.resubmit").End()

	verr := validationFrom(cmd)
	issue, due := parseDraft(verr, cmd.IssueDate, cmd.DueDate, cmd.Items)
	phone, phoneErr := domain.NormalizePhone(cmd.Phone)
	verr.Merge(phoneErr)
	if verr.HasErrors() {
		return nil, verr
	}

	var invoice *models.Invoice
	err := h.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.Repository) error {
		var err error
		invoice, err = tx.FindInvoice(ctx, actor.TenantID, invoiceID)
		if err != nil {
			return notFound(err)
		}

		from := domain.ApprovalStatus(invoice.ApprovalStatus)
		next, err := domain.DecideApproval(currentApproval(invoice), domain.ActionResend, actor, "", time.Now())
		if err != nil {
			if _, ok := domain.AsValidationError(err); ok {
				return domain.NewValidationError("approval_status", "only rejected or on-hold invoices can be resubmitted")
			}
			return err
		}

		totals := domain.ComputeTotals(cmd.Items)
		invoice.ClientName = strings.TrimSpace(cmd.ClientName)
		invoice.Email = strings.TrimSpace(cmd.Email)
		invoice.Phone = phone
		invoice.Address = strings.TrimSpace(cmd.Address)
		invoice.IssueDate = issue
		invoice.DueDate = due
		invoice.Notes = cmd.Notes
		invoice.Subtotal = totals.Subtotal
		invoice.Tax = totals.Tax
		invoice.Total = totals.Total
		applyApproval(invoice, next)

		if err := tx.UpdateInvoice(ctx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		items := toModelItems(cmd.Items)
		if err := tx.ReplaceInvoiceItems(ctx, invoice.ID, items); err != nil {
			return fmt.Errorf("failed to replace invoice items: %w", err)
		}
		invoice.Items = items

		if err := tx.AppendAuditLog(ctx, newAuditEntry(invoice, domain.AuditResubmitted, invoice.ApprovalStatus, actor.Label())); err != nil {
			return fmt.Errorf("failed to append audit log: %w", err)
		}

		return recordInvoiceEvent(ctx, tx, invoice.ID, domain.InvoiceResubmittedEvent{
			InvoiceID: invoice.ID,
			TenantID:  invoice.TenantID,
			From:      from,
			Total:     invoice.Total,
			ActorID:   actor.UserID,
			At:        time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, h.cache, invoice.TenantID, invoice.ID)
	h.metrics.ApprovalTransition(string(domain.ActionResend))
	log.Info().Uint("invoiceID", invoice.ID).Msg("Invoice resubmitted for approval")
	return invoice, nil
}

// GetInvoice returns an invoice of the actor's tenant with its delivery state
func (h *InvoiceHandler) GetInvoice(ctx context.Context, actor domain.ActorContext, invoiceID uint) (*InvoiceView, error) {
	key := cache.InvoiceCacheKey(actor.TenantID, invoiceID)
	if h.cache != nil {
		var cached InvoiceView
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read cached invoice")
		}
	}

	invoice, err := h.repo.FindInvoice(ctx, actor.TenantID, invoiceID)
	if err != nil {
		return nil, notFound(err)
	}
	delivery, err := loadDelivery(ctx, h.repo, invoice.ID)
	if err != nil {
		return nil, err
	}
	view := h.view(invoice, delivery.State)

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, view); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache invoice")
		}
	}
	return view, nil
}

// ListInvoices returns the actor's invoices, newest first
func (h *InvoiceHandler) ListInvoices(ctx context.Context, actor domain.ActorContext, query ListInvoicesQuery) ([]InvoiceView, error) {
	if query.ApprovalStatus != "" && !validApprovalStatus(query.ApprovalStatus) {
		return nil, domain.NewValidationError("approval_status", "must be one of: pending approved rejected on-hold")
	}
	if query.DeliveryStatus != "" {
		if _, ok := domain.ParseDeliveryStatus(query.DeliveryStatus); !ok {
			return nil, domain.NewValidationError("delivery_status", "must be one of: pending delivered opened failed")
		}
	}

	if query.DeliveryStatus != "" {
		return h.listByDelivery(ctx, actor, query)
	}

	invoices, err := h.repo.ListInvoices(ctx, actor.TenantID, repository.InvoiceFilter{
		ApprovalStatus: query.ApprovalStatus,
		Limit:          query.Limit,
		Offset:         query.Offset,
	})
	if err != nil {
		return nil, err
	}

	views := make([]InvoiceView, 0, len(invoices))
	for i := range invoices {
		delivery, err := loadDelivery(ctx, h.repo, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		views = append(views, *h.view(&invoices[i], delivery.State))
	}
	return views, nil
}

// listByDelivery pages through the tenant's invoices in batches because the
// delivery status is derived from the event stream. Offset and limit count
// matching invoices only.
func (h *InvoiceHandler) listByDelivery(ctx context.Context, actor domain.ActorContext, query ListInvoicesQuery) ([]InvoiceView, error) {
	limit := query.Limit
	if limit <= 0 || limit > repository.DefaultListLimit {
		limit = repository.DefaultListLimit
	}
	skip := query.Offset

	views := make([]InvoiceView, 0, limit)
	for offset := 0; len(views) < limit; offset += repository.DefaultListLimit {
		invoices, err := h.repo.ListInvoices(ctx, actor.TenantID, repository.InvoiceFilter{
			ApprovalStatus: query.ApprovalStatus,
			Limit:          repository.DefaultListLimit,
			Offset:         offset,
		})
		if err != nil {
			return nil, err
		}

		for i := range invoices {
			delivery, err := loadDelivery(ctx, h.repo, invoices[i].ID)
			if err != nil {
				return nil, err
			}
			if string(delivery.State.EffectiveStatus()) != query.DeliveryStatus {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			views = append(views, *h.view(&invoices[i], delivery.State))
			if len(views) == limit {
				break
			}
		}
		if len(invoices) < repository.DefaultListLimit {
			break
		}
	}
	return views, nil
}

// GetHistory returns the invoice and delivery events of an invoice, oldest first
func (h *InvoiceHandler) GetHistory(ctx context.Context, actor domain.ActorContext, invoiceID uint) ([]HistoryEntry, error) {
	if _, err := h.repo.FindInvoice(ctx, actor.TenantID, invoiceID); err != nil {
		return nil, notFound(err)
	}

	var history []HistoryEntry
	for _, stream := range []string{domain.AggregateTypeInvoice, domain.AggregateTypeDelivery} {
		events, err := h.repo.Events().GetEvents(ctx, stream, domain.AggregateID(invoiceID))
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			history = append(history, HistoryEntry{
				Stream:    stream,
				Type:      e.Type,
				Version:   e.Version,
				Timestamp: e.Timestamp,
				Data:      e.Data,
			})
		}
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	return history, nil
}

func (h *InvoiceHandler) view(invoice *models.Invoice, delivery domain.DeliveryState) *InvoiceView {
	v := &InvoiceView{
		Invoice:               *invoice,
		DeliveryStatus:        delivery.EffectiveStatus(),
		DeliveryFailureReason: delivery.FailureReason(),
		OpenedAt:              delivery.OpenedAt(),
		DeliveryLog:           delivery.Entries,
	}
	if h.signer != nil {
		v.TrackingURL = h.signer.PixelURL(invoice.ID)
		v.ViewURL = h.signer.ViewURL(invoice.ID)
	}
	return v
}

func validApprovalStatus(s string) bool {
	switch domain.ApprovalStatus(s) {
	case domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalRejected, domain.ApprovalOnHold:
		return true
	}
	return false
}
