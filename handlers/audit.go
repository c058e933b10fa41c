package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/anomaly"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/metrics"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
)

// AuditGroup collects the audit entries of one invoice number
type AuditGroup struct {
	InvoiceNumber string            `json:"invoice_number"`
	ClientName    string            `json:"client_name"`
	Amount        float64           `json:"amount"`
	Status        string            `json:"status"`
	Entries       []models.AuditLog `json:"entries"`
}

// ScanResult is an anomaly scan over a tenant's audit log
type ScanResult struct {
	anomaly.Result
	FlaggedInvoices []string     `json:"flagged_invoices"`
	Groups          []AuditGroup `json:"groups"`
}

type AuditHandler struct {
	repo    repository.Repository
	metrics *metrics.Metrics
}

func NewAuditHandler(repo repository.Repository, m *metrics.Metrics) *AuditHandler {
	return &AuditHandler{repo: repo, metrics: m}
}

// groupKey is the invoice number, or a synthetic one for unnumbered entries
func groupKey(entry models.AuditLog) string {
	if entry.InvoiceNumber != "" {
		return entry.InvoiceNumber
	}
	return fmt.Sprintf(domain.AuditAutoNumberFormat, entry.ID)
}

// GroupAuditLogs groups entries by invoice in order of first appearance
func GroupAuditLogs(entries []models.AuditLog) []AuditGroup {
	groups := []AuditGroup{}
	index := map[string]int{}

	for _, entry := range entries {
		key := groupKey(entry)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, AuditGroup{InvoiceNumber: key})
		}

		g := &groups[i]
		g.Entries = append(g.Entries, entry)
		if entry.Amount > g.Amount {
			g.Amount = entry.Amount
		}
		if entry.ClientName != "" {
			g.ClientName = entry.ClientName
		}
		g.Status = entry.Status
	}
	return groups
}

// ListAuditLog returns the tenant's audit log grouped by invoice
func (h *AuditHandler) ListAuditLog(ctx context.Context, actor domain.ActorContext) ([]AuditGroup, error) {
	entries, err := h.repo.ListAuditLogs(ctx, actor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return GroupAuditLogs(entries), nil
}

// Scan runs the anomaly detector over every audit amount of the tenant
func (h *AuditHandler) Scan(ctx context.Context, actor domain.ActorContext) (*ScanResult, error) {
	result, err := h.scan(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	h.metrics.SetAnomalousInvoices(len(result.FlaggedInvoices))
	return result, nil
}

// ScanAll scans every tenant and returns the number of flagged invoices
func (h *AuditHandler) ScanAll(ctx context.Context) (int, error) {
	tenants, err := h.repo.ListAuditTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	total := 0
	for _, tenantID := range tenants {
		result, err := h.scan(ctx, tenantID)
		if err != nil {
			return total, err
		}
		if len(result.FlaggedInvoices) > 0 {
			log.Warn().
				Uint("tenantID", tenantID).
				Strs("invoices", result.FlaggedInvoices).
				Float64("threshold", result.Threshold).
				Msg("Anomalous invoice amounts")
		}
		total += len(result.FlaggedInvoices)
	}

	h.metrics.SetAnomalousInvoices(total)
	return total, nil
}

func (h *AuditHandler) scan(ctx context.Context, tenantID uint) (*ScanResult, error) {
	entries, err := h.repo.ListAuditLogs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}

	points := make([]anomaly.Point, len(entries))
	byID := make(map[uint]string, len(entries))
	for i, entry := range entries {
		points[i] = anomaly.Point{ID: entry.ID, Amount: entry.Amount}
		byID[entry.ID] = groupKey(entry)
	}
	result := anomaly.Detect(points)

	flagged := []string{}
	seen := map[string]bool{}
	for _, id := range result.Flagged {
		key := byID[id]
		if !seen[key] {
			seen[key] = true
			flagged = append(flagged, key)
		}
	}

	log.Debug().
		Uint("tenantID", tenantID).
		Int("points", result.Count).
		Int("flagged", len(result.Flagged)).
		Msg("Audit log anomaly scan")

	return &ScanResult{
		Result:          result,
		FlaggedInvoices: flagged,
		Groups:          GroupAuditLogs(entries),
	}, nil
}
