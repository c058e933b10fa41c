package projections

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/database"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
)

type MockProjector struct {
	mock.Mock
}

func (m *MockProjector) Name() string {
	return "mock"
}

func (m *MockProjector) Project(ctx context.Context, event domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newTestRepository(t *testing.T) repository.Repository {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewRepository(db)
}

func seedInvoice(t *testing.T, repo repository.Repository) *models.Invoice {
	t.Helper()
	ctx := context.Background()
	invoice := &models.Invoice{
		TenantID:       1,
		InvoiceNumber:  "INV-2026-001",
		ClientName:     "Acme",
		Email:          "ap@acme.test",
		IssueDate:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Total:          109,
		ApprovalStatus: string(domain.ApprovalApproved),
		Items:          []models.InvoiceItem{{Description: "Design work", Quantity: 1, Rate: 100, Total: 100}},
	}
	require.NoError(t, repo.CreateInvoice(ctx, invoice))

	agg := domain.NewInvoiceAggregate(invoice.ID)
	require.NoError(t, agg.Apply(domain.InvoiceCreatedEvent{InvoiceID: invoice.ID, TenantID: 1, InvoiceNumber: invoice.InvoiceNumber, At: time.Now()}))
	require.NoError(t, repo.Events().Save(ctx, agg))

	delivery := domain.NewDeliveryAggregate(invoice.ID)
	require.NoError(t, delivery.Send(invoice.Email, "msg-1", 1, time.Now()))
	_, err := delivery.ConfirmDelivered(domain.SourceMailer, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Events().Save(ctx, delivery))
	return invoice
}

func TestProcessBatchMarksProcessed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedInvoice(t, repo)

	projector := new(MockProjector)
	projector.On("Project", mock.Anything, mock.AnythingOfType("domain.Event")).Return(nil).Times(3)

	processor := NewEventProcessor(repo.Events(), nil, 10, time.Second, projector)
	n, err := processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	projector.AssertExpectations(t)

	remaining, err := repo.Events().GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	n, err = processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRetriesFailures(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedInvoice(t, repo)

	failing := new(MockProjector)
	failing.On("Project", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Type == domain.DeliveryDelivered
	})).Return(errors.New("index unavailable"))
	failing.On("Project", mock.Anything, mock.Anything).Return(nil)

	processor := NewEventProcessor(repo.Events(), nil, 10, time.Second, failing)
	n, err := processor.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := repo.Events().GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, domain.DeliveryDelivered, remaining[0].Type)
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := newTestRepository(t)
	processor := NewEventProcessor(repo.Events(), nil, 10, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- processor.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestBuildInvoiceDocument(t *testing.T) {
	repo := newTestRepository(t)
	invoice := seedInvoice(t, repo)

	delivery := domain.NewDeliveryAggregate(invoice.ID)
	require.NoError(t, repo.Events().Load(context.Background(), delivery))

	doc := BuildInvoiceDocument(invoice, delivery.State)
	assert.Equal(t, invoice.ID, doc.InvoiceID)
	assert.Equal(t, "delivered", doc.DeliveryStatus)
	assert.Equal(t, []string{"Design work"}, doc.Items)
}

// fakeElastic records index requests and answers searches
type fakeElastic struct {
	mu      sync.Mutex
	indexed map[string]string
	search  string
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/":
		io.WriteString(w, `{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.search = string(body)
		f.mu.Unlock()
		io.WriteString(w, `{"hits":{"hits":[{"_source":{"invoice_id":1,"tenant_id":1,"invoice_number":"INV-2026-001"}}]}}`)
	default:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.indexed[r.URL.Path] = string(body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"result":"created"}`)
	}
}

func TestInvoiceProjectorAndSearch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	invoice := seedInvoice(t, repo)

	fake := &fakeElastic{indexed: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := config.ElasticConfig{URL: srv.URL, Prefix: "test"}
	client, err := NewElasticsearchClient(cfg)
	require.NoError(t, err)

	events, err := repo.Events().GetEvents(ctx, domain.AggregateTypeDelivery, domain.AggregateID(invoice.ID))
	require.NoError(t, err)

	projector := NewInvoiceProjector(repo, client, cfg)
	require.NoError(t, projector.Project(ctx, events[1]))

	fake.mu.Lock()
	doc, ok := fake.indexed["/test-invoices/_doc/1"]
	fake.mu.Unlock()
	require.True(t, ok, "invoice document not indexed: %v", fake.indexed)

	var indexed InvoiceDocument
	require.NoError(t, json.Unmarshal([]byte(doc), &indexed))
	assert.Equal(t, "delivered", indexed.DeliveryStatus)
	assert.Equal(t, "INV-2026-001", indexed.InvoiceNumber)

	searcher := NewInvoiceSearcher(client, cfg)
	docs, err := searcher.SearchInvoices(ctx, 1, "acme", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "INV-2026-001", docs[0].InvoiceNumber)

	fake.mu.Lock()
	assert.Contains(t, fake.search, `"tenant_id":1`)
	fake.mu.Unlock()
}
