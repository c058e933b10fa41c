package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/advisor"
)

// validateInvoice reviews a draft without touching any invoice
func (s *Server) validateInvoice(c *gin.Context) {
	if s.deps.Advisor == nil {
		writeError(c, advisor.ErrUnavailable)
		return
	}

	var draft advisor.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	report, err := s.deps.Advisor.Review(ctx, draft)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
