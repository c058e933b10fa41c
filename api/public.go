package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/tracking"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/utils"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

// trackingPixel always answers with the pixel. Bad tokens and unknown
// invoices change nothing.
func (s *Server) trackingPixel(c *gin.Context) {
	if id, ok := pathID(c, "id"); ok {
		ctx, cancel := s.requestContext(c)
		err := s.deps.Delivery.HandleTrackingPixel(ctx, id, c.Param("token"), c.ClientIP(), c.Request.UserAgent())
		cancel()
		if err != nil {
			log.Error().Err(err).Uint("invoiceID", id).Msg("Failed to record tracking pixel")
		}
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/png", tracking.Pixel)
}

func (s *Server) viewInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		writeAPIError(c, ErrForbidden)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	invoice, err := s.deps.Delivery.HandleViewLink(ctx, id, c.Param("token"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

func (s *Server) providerWebhook(c *gin.Context) {
	if !s.cfg.Webhooks.Enabled {
		c.JSON(http.StatusOK, gin.H{"message": "webhooks disabled"})
		return
	}

	provider := c.Param("provider")
	secret, ok := s.cfg.Webhooks.ProviderSecret(provider)
	if !ok {
		log.Warn().Str("provider", provider).Msg("Webhook from unknown provider")
		writeAPIError(c, ErrUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "Failed to read request body")
		return
	}

	if !utils.VerifySignature(secret, body, c.GetHeader(signatureHeader)) {
		log.Warn().Str("provider", provider).Msg("Webhook signature mismatch")
		s.deps.Metrics.WebhookCallback(provider, "rejected")
		writeAPIError(c, ErrUnauthorized)
		return
	}

	cmd, err := handlers.ParseProviderEvent(provider, body)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.deps.Delivery.HandleProviderEvent(ctx, cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
