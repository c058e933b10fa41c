package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

func TestGroupAuditLogs(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	entries := []models.AuditLog{
		{ID: 1, InvoiceNumber: "INV-2026-001", ClientName: "Acme", Action: "Invoice Created", Amount: 100, Status: "pending", Timestamp: base},
		{ID: 2, ClientName: "Walk-in", Action: "Invoice Created", Amount: 20, Status: "pending", Timestamp: base.Add(time.Minute)},
		{ID: 3, InvoiceNumber: "INV-2026-001", ClientName: "Acme Ltd", Action: "Approved", Amount: 120, Status: "approved", Timestamp: base.Add(2 * time.Minute)},
	}

	groups := GroupAuditLogs(entries)
	require.Len(t, groups, 2)

	assert.Equal(t, "INV-2026-001", groups[0].InvoiceNumber)
	assert.Equal(t, "Acme Ltd", groups[0].ClientName)
	assert.Equal(t, 120.0, groups[0].Amount)
	assert.Equal(t, "approved", groups[0].Status)
	assert.Len(t, groups[0].Entries, 2)

	assert.Equal(t, "INV-AUTO-0002", groups[1].InvoiceNumber)
	assert.Len(t, groups[1].Entries, 1)

	assert.Empty(t, GroupAuditLogs(nil))
}

func TestAuditScanFlagsOutlier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	amounts := []float64{10, 10, 10, 10, 10, 5000}
	for i, amount := range amounts {
		require.NoError(t, env.repo.AppendAuditLog(ctx, &models.AuditLog{
			TenantID:      admin.TenantID,
			InvoiceNumber: "INV-2026-00" + string(rune('1'+i)),
			Action:        "Invoice Created",
			Amount:        amount,
			Status:        "pending",
			Actor:         "employee",
		}))
	}
	// Other tenants do not contribute
	require.NoError(t, env.repo.AppendAuditLog(ctx, &models.AuditLog{TenantID: outsider.TenantID, InvoiceNumber: "X", Amount: 1e9}))

	result, err := env.audit.Scan(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Count)
	require.Len(t, result.Flagged, 1)
	assert.Equal(t, []string{"INV-2026-006"}, result.FlaggedInvoices)
	assert.Len(t, result.Groups, 6)
}

func TestAuditScanTooFewPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.repo.AppendAuditLog(ctx, &models.AuditLog{TenantID: admin.TenantID, InvoiceNumber: "INV-2026-001", Amount: 10}))
	require.NoError(t, env.repo.AppendAuditLog(ctx, &models.AuditLog{TenantID: admin.TenantID, InvoiceNumber: "INV-2026-002", Amount: 0}))

	result, err := env.audit.Scan(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Empty(t, result.Flagged)
	assert.Empty(t, result.FlaggedInvoices)
}

func TestListAuditLogAfterWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createApproved(t, draft())

	groups, err := env.audit.ListAuditLog(ctx, employee)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "INV-2026-001", groups[0].InvoiceNumber)
	assert.Equal(t, "approved", groups[0].Status)
	assert.Len(t, groups[0].Entries, 3)
}

func TestAuditScanAllTenants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, amount := range []float64{10, 10, 10, 10, 10, 5000} {
		require.NoError(t, env.repo.AppendAuditLog(ctx, &models.AuditLog{TenantID: admin.TenantID, Amount: amount}))
	}
	for _, amount := range []float64{50, 55} {
		require.NoError(t, env.repo.AppendAuditLog(ctx, &models.AuditLog{TenantID: outsider.TenantID, Amount: amount}))
	}

	flagged, err := env.audit.ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)
}
