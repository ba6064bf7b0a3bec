// Package internalapi provides HTTP handlers for operational inspection.
// These APIs are only reachable on the internal listener.
package internalapi

import (
	"github.com/labstack/echo/v4"

	"geniebot/internal/store"
)

// Handler handles internal HTTP requests.
type Handler struct {
	turns store.Store
}

// NewHandler creates a new internal API handler.
func NewHandler(turns store.Store) *Handler {
	return &Handler{turns: turns}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/internal/turns", h.ListTurns)
	e.GET("/internal/turns/:turn_id", h.GetTurn)
}
