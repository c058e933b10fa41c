package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (s *Server) createInvoice(c *gin.Context) {
	var cmd handlers.CreateInvoiceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	invoice, err := s.deps.Invoices.HandleCreateInvoice(ctx, actorFrom(c), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invoice)
}

func (s *Server) listInvoices(c *gin.Context) {
	query := handlers.ListInvoicesQuery{
		ApprovalStatus: c.Query("approval_status"),
		DeliveryStatus: c.Query("delivery_status"),
	}

	var ok bool
	if query.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}
	if query.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	invoices, err := s.deps.Invoices.ListInvoices(ctx, actorFrom(c), query)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (s *Server) searchInvoices(c *gin.Context) {
	if s.deps.Search == nil {
		writeAPIError(c, &Error{Message: "search is not configured", StatusCode: http.StatusServiceUnavailable, Code: ErrServiceUnavailable.Code})
		return
	}

	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	actor := actorFrom(c)
	docs, err := s.deps.Search.SearchInvoices(ctx, actor.TenantID, strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoices": docs})
}

func (s *Server) getInvoice(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	invoice, err := s.deps.Invoices.GetInvoice(ctx, actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

func (s *Server) getInvoiceHistory(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	history, err := s.deps.Invoices.GetHistory(ctx, actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice_id": id, "history": history})
}

func (s *Server) approvalAction(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	var cmd handlers.ApprovalActionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.deps.Invoices.HandleApprovalAction(ctx, actorFrom(c), id, cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) resubmitInvoice(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	var cmd handlers.ResubmitInvoiceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	invoice, err := s.deps.Invoices.HandleResubmitInvoice(ctx, actorFrom(c), id, cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// deliveryAction handles send, resend and the manual mark-* overrides
func (s *Server) deliveryAction(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	actor := actorFrom(c)
	action := c.Param("action")

	var (
		result *handlers.DeliveryResult
		err    error
	)
	switch {
	case action == "send":
		result, err = s.deps.Delivery.HandleSend(ctx, actor, id)
	case action == "resend":
		result, err = s.deps.Delivery.HandleResend(ctx, actor, id)
	case strings.HasPrefix(action, "mark-"):
		result, err = s.deps.Delivery.HandleOverride(ctx, actor, id, strings.TrimPrefix(action, "mark-"))
	default:
		writeAPIError(c, ErrNotFound)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// queryInt reads an optional non-negative integer query parameter
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return n, true
}
