package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listAuditLog(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	groups, err := s.deps.Audit.ListAuditLog(ctx, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) scanAuditLog(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	result, err := s.deps.Audit.Scan(ctx, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
