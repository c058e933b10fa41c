package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/database"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/mailer"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
)

var (
	admin    = domain.ActorContext{UserID: 1, TenantID: 1, Role: domain.RoleAdmin}
	employee = domain.ActorContext{UserID: 2, TenantID: 1, Role: domain.RoleEmployee}
	outsider = domain.ActorContext{UserID: 3, TenantID: 2, Role: domain.RoleAdmin}
)

// MockMailer records outbound invoice emails
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type testEnv struct {
	db       *gorm.DB
	repo     repository.Repository
	signer   *tracking.Signer
	mailer   *MockMailer
	invoices *InvoiceHandler
	delivery *DeliveryHandler
	audit    *AuditHandler
	clients  *ClientHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo := repository.NewRepository(db)
	signer := tracking.NewSigner("test-secret", "http://localhost:8080")
	m := new(MockMailer)

	return &testEnv{
		db:       db,
		repo:     repo,
		signer:   signer,
		mailer:   m,
		invoices: NewInvoiceHandler(repo, signer, nil),
		delivery: NewDeliveryHandler(repo, m, signer, "billing@example.com", nil),
		audit:    NewAuditHandler(repo, nil),
		clients:  NewClientHandler(repo),
	}
}

func draft() CreateInvoiceCommand {
	return CreateInvoiceCommand{
		ClientName: "Acme Ltd",
		Email:      "billing@acme.test",
		IssueDate:  "2026-03-01",
		DueDate:    "2026-03-31",
		Items: []domain.LineItem{
			{Description: "Consulting", Quantity: 2, Rate: 150},
			{Description: "Hosting", Quantity: 1, Rate: 40},
		},
	}
}

// createApproved creates an invoice and approves it as admin
func (e *testEnv) createApproved(t *testing.T, cmd CreateInvoiceCommand) uint {
	t.Helper()
	ctx := context.Background()
	invoice, err := e.invoices.HandleCreateInvoice(ctx, employee, cmd)
	require.NoError(t, err)
	_, err = e.invoices.HandleApprovalAction(ctx, admin, invoice.ID, ApprovalActionCommand{Action: "approve"})
	require.NoError(t, err)
	return invoice.ID
}

func (e *testEnv) deliveryEvents(t *testing.T, invoiceID uint, eventType string) int {
	t.Helper()
	events, err := e.repo.Events().GetEvents(context.Background(), domain.AggregateTypeDelivery, domain.AggregateID(invoiceID))
	require.NoError(t, err)
	n := 0
	for _, ev := range events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func requireValidationField(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	require.Contains(t, verr.Fields, field)
}

func requireForbidden(t *testing.T, err error) {
	t.Helper()
	require.True(t, errors.Is(err, domain.ErrForbidden), "expected forbidden, got %v", err)
}
