package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/handlers"
)

func (s *Server) createClient(c *gin.Context) {
	var cmd handlers.ClientCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	client, err := s.deps.Clients.HandleCreateClient(ctx, actorFrom(c), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, client)
}

func (s *Server) listClients(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	clients, err := s.deps.Clients.ListClients(ctx, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (s *Server) getClient(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	client, err := s.deps.Clients.GetClient(ctx, actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

func (s *Server) updateClient(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	var cmd handlers.ClientCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	client, err := s.deps.Clients.HandleUpdateClient(ctx, actorFrom(c), id, cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

func (s *Server) deleteClient(c *gin.Context) {
	id, ok := requireID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.deps.Clients.HandleDeleteClient(ctx, actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
