package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/advisor"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/auth"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/database"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/mailer"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/utils"
)

var (
	adminActor    = domain.ActorContext{UserID: 1, TenantID: 1, Role: domain.RoleAdmin}
	employeeActor = domain.ActorContext{UserID: 2, TenantID: 1, Role: domain.RoleEmployee}
)

type fakeMailer struct {
	sent []mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type testServer struct {
	server *Server
	repo   repository.Repository
	signer *tracking.Signer
	tokens *auth.TokenIssuer
	mailer *fakeMailer
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Timeout: 5 * time.Second},
		Auth:        config.AuthConfig{JWTSecret: "jwt-secret", Issuer: "fourvoice"},
		Webhooks: config.WebhookConfig{
			Enabled:   true,
			Providers: map[string]string{"sendgrid": "hook-secret"},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	repo := repository.NewRepository(db)
	signer := tracking.NewSigner("test-secret", "http://localhost:8080")
	tokens, err := auth.NewTokenIssuer(cfg.Auth)
	require.NoError(t, err)
	m := &fakeMailer{}

	deps := Dependencies{
		Invoices: handlers.NewInvoiceHandler(repo, signer, nil),
		Delivery: handlers.NewDeliveryHandler(repo, m, signer, "billing@example.com", nil),
		Audit:    handlers.NewAuditHandler(repo, nil),
		Clients:  handlers.NewClientHandler(repo),
		Advisor:  advisor.New(cfg.Advisor),
		Tokens:   tokens,
	}

	return &testServer{
		server: NewServer(cfg, deps),
		repo:   repo,
		signer: signer,
		tokens: tokens,
		mailer: m,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, actor *domain.ActorContext, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := ts.tokens.Issue(*actor)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) createInvoice(t *testing.T) uint {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/invoices", &employeeActor, map[string]interface{}{
		"client_name": "Acme Ltd",
		"email":       "billing@acme.test",
		"issue_date":  "2026-03-01",
		"due_date":    "2026-03-31",
		"items": []map[string]interface{}{
			{"description": "Consulting", "quantity": 2, "rate": 150},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created.ID
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDKey))
}

func TestMissingToken(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/v1/invoices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApprovalActionRequiresAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInvoice(t)
	path := "/api/v1/invoices/" + itoa(id) + "/approval-action"

	w := ts.do(t, http.MethodPost, path, &employeeActor, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, path, &adminActor, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Invoice struct {
			ApprovalStatus string `json:"approval_status"`
		} `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "approved", result.Invoice.ApprovalStatus)
}

func TestApprovalActionValidationError(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInvoice(t)

	w := ts.do(t, http.MethodPost, "/api/v1/invoices/"+itoa(id)+"/approval-action", &adminActor, map[string]string{"action": "explode"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Fields, "action")
}

func TestSendThenTrackingPixelTwice(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInvoice(t)

	w := ts.do(t, http.MethodPost, "/api/v1/invoices/"+itoa(id)+"/approval-action", &adminActor, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/invoices/"+itoa(id)+"/delivery/send", &employeeActor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, ts.mailer.sent, 1)

	path := "/track/" + itoa(id) + "/" + ts.signer.TrackingToken(id)
	for i := 0; i < 2; i++ {
		w = ts.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Cache-Control"), "no-cache")
		assert.Equal(t, tracking.Pixel, w.Body.Bytes())
	}

	events, err := ts.repo.Events().GetEvents(context.Background(), domain.AggregateTypeDelivery, domain.AggregateID(id))
	require.NoError(t, err)
	opened := 0
	for _, ev := range events {
		if ev.Type == domain.DeliveryOpened {
			opened++
		}
	}
	assert.Equal(t, 1, opened)
}

func TestTrackingPixelBadToken(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/track/42/nope", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tracking.Pixel, w.Body.Bytes())

	w = ts.do(t, http.MethodGet, "/view/42/nope", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnknownDeliveryAction(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.createInvoice(t)

	w := ts.do(t, http.MethodPost, "/api/v1/invoices/"+itoa(id)+"/delivery/teleport", &adminActor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func webhookRequest(t *testing.T, ts *testServer, provider, signature string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhookSignature(t *testing.T) {
	ts := newTestServer(t, nil)
	body := []byte(`{"event":"DELIVERED","recipient_email":"nobody@acme.test","message_id":"m-1"}`)

	w := webhookRequest(t, ts, "sendgrid", "deadbeef", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = webhookRequest(t, ts, "mailgun", utils.SignPayload("hook-secret", body), body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = webhookRequest(t, ts, "sendgrid", utils.SignPayload("hook-secret", body), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result handlers.ProviderEventResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, handlers.OutcomeUnmatched, result.Outcome)
}

func TestWebhookDisabled(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks.Enabled = false
	})

	w := webhookRequest(t, ts, "sendgrid", "", []byte(`{}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"webhooks disabled"}`, w.Body.String())
}

func TestSearchUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/v1/invoices/search?q=acme", &employeeActor, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdvisorRuleChecks(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/advisor/validate-invoice", &employeeActor, advisor.Draft{
		ClientName: "Acme Ltd",
		IssueDate:  "2026-03-31",
		DueDate:    "2026-03-01",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report advisor.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.AdvisorAvailable)
	assert.NotEmpty(t, report.Issues)

	w = ts.do(t, http.MethodPost, "/api/v1/advisor/validate-invoice", &employeeActor, advisor.Draft{RequireModel: true})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.CorsEnabled = true
		cfg.Server.CorsOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
