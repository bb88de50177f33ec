package handlers

import (
	"net/http"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/anonto42/edu-connect/backend/internal/middleware"
	"github.com/anonto42/edu-connect/backend/internal/models"
	"github.com/anonto42/edu-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ConnectionHandler handles HTTP requests related to connection requests
type ConnectionHandler struct {
	connections *services.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connections *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// RegisterConnectionRoutes registers connection-related routes
func (h *ConnectionHandler) RegisterConnectionRoutes(g *echo.Group) {
	g.POST("/connections", h.SendRequest)
	g.POST("/connections/:id/accept", h.AcceptRequest)
	g.DELETE("/connections/:id", h.RejectRequest)
	g.GET("/connections", h.ListConnections)
}

// SendRequest sends a connection request to the account registered under an email
func (h *ConnectionHandler) SendRequest(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	var req models.CreateConnectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	id, err := h.connections.SendRequest(c.Request().Context(), callerID, middleware.AccountName(c), req.ReceiverEmail)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// AcceptRequest accepts a pending request. Only the receiver may accept.
func (h *ConnectionHandler) AcceptRequest(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	req, err := h.connections.GetRequest(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if req.ReceiverID != callerID {
		return httpError(apperrors.Forbidden("only the receiver can accept a connection request"))
	}

	if err := h.connections.AcceptRequest(ctx, req.ID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": req.ID, "status": models.ConnectionStatusAccepted})
}

// RejectRequest deletes a request. Either side may reject or withdraw it.
func (h *ConnectionHandler) RejectRequest(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	req, err := h.connections.GetRequest(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if req.ReceiverID != callerID && req.SenderID != callerID {
		return httpError(apperrors.Forbidden("not a party to this connection request"))
	}

	if err := h.connections.RejectRequest(ctx, req.ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListConnections returns the caller's connections and pending requests.
// The optional ?as= parameter must name the caller.
func (h *ConnectionHandler) ListConnections(c echo.Context) error {
	callerID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	if as := c.QueryParam("as"); as != "" && as != callerID {
		return httpError(apperrors.Forbidden("cannot list another account's connections"))
	}

	ctx := c.Request().Context()
	connections, err := h.connections.ListConnections(ctx, callerID)
	if err != nil {
		return httpError(err)
	}
	pending, err := h.connections.ListPending(ctx, callerID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"connections": connections,
		"received":    pending.Received,
		"sent":        pending.Sent,
	})
}
