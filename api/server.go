package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/advisor"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/auth"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/metrics"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/projections"
)

// InvoiceSearcher queries the invoice read model
type InvoiceSearcher interface {
	SearchInvoices(ctx context.Context, tenantID uint, query string, limit int) ([]projections.InvoiceDocument, error)
}

// Dependencies are the collaborators the routes call into. Search, Metrics
// and NewRelic are optional.
type Dependencies struct {
	Invoices *handlers.InvoiceHandler
	Delivery *handlers.DeliveryHandler
	Audit    *handlers.AuditHandler
	Clients  *handlers.ClientHandler
	Advisor  *advisor.Advisor
	Search   InvoiceSearcher
	Tokens   *auth.TokenIssuer
	Metrics  *metrics.Metrics
	NewRelic *newrelic.Application
}

// Server is the HTTP server for the API
type Server struct {
	cfg        config.Config
	router     *gin.Engine
	httpServer *http.Server
	deps       Dependencies
}

// NewServer creates a new API server
func NewServer(cfg config.Config, deps Dependencies) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		cfg:    cfg,
		router: gin.New(),
		deps:   deps,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())
	s.router.Use(RecoveryMiddleware())
	if s.deps.NewRelic != nil {
		s.router.Use(nrgin.Middleware(s.deps.NewRelic))
	}
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.Middleware())
	}
	s.router.Use(LoggingMiddleware())
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	// Public recipient and provider endpoints
	s.router.GET("/track/:id/:token", s.trackingPixel)
	s.router.GET("/view/:id/:token", s.viewInvoice)
	s.router.POST("/webhooks/:provider", s.providerWebhook)

	v1 := s.router.Group("/api/v1", AuthMiddleware(s.deps.Tokens))

	invoiceRoutes := v1.Group("/invoices")
	{
		invoiceRoutes.POST("", s.createInvoice)
		invoiceRoutes.GET("", s.listInvoices)
		invoiceRoutes.GET("/search", s.searchInvoices)
		invoiceRoutes.GET("/:id", s.getInvoice)
		invoiceRoutes.GET("/:id/history", s.getInvoiceHistory)
		invoiceRoutes.POST("/:id/approval-action", s.approvalAction)
		invoiceRoutes.POST("/:id/resubmit", s.resubmitInvoice)
		invoiceRoutes.POST("/:id/delivery/:action", s.deliveryAction)
	}

	auditRoutes := v1.Group("/audit-log")
	{
		auditRoutes.GET("", s.listAuditLog)
		auditRoutes.GET("/scan", s.scanAuditLog)
	}

	clientRoutes := v1.Group("/clients")
	{
		clientRoutes.POST("", s.createClient)
		clientRoutes.GET("", s.listClients)
		clientRoutes.GET("/:id", s.getClient)
		clientRoutes.PUT("/:id", s.updateClient)
		clientRoutes.DELETE("/:id", s.deleteClient)
	}

	v1.POST("/advisor/validate-invoice", s.validateInvoice)
}

// Handler returns the root handler with CORS applied when enabled
func (s *Server) Handler() http.Handler {
	if !s.cfg.Server.CorsEnabled {
		return s.router
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.CorsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", requestIDKey},
		ExposedHeaders:   []string{requestIDKey},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.Server.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestContext bounds a handler call by the server timeout
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Server.Timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.cfg.Server.Timeout)
}

// pathID parses a positive numeric path parameter
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// requireID parses a path id and writes 400 when it is invalid
func requireID(c *gin.Context, name string) (uint, bool) {
	id, ok := pathID(c, name)
	if !ok {
		badRequest(c, "invalid "+name)
	}
	return id, ok
}
