package internalapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultListLimit = 50

// ListTurns lists recent turn records, newest first.
// GET /internal/turns?session_id=&limit=
func (h *Handler) ListTurns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = parsed
	}

	turns, err := h.turns.ListTurns(ctx, c.QueryParam("session_id"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"turns": turns,
		"count": len(turns),
	})
}

// GetTurn fetches one turn record.
// GET /internal/turns/:turn_id
func (h *Handler) GetTurn(c echo.Context) error {
	turnID := c.Param("turn_id")
	ctx := c.Request().Context()

	turn, err := h.turns.GetTurn(ctx, turnID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if turn == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "turn not found"})
	}

	return c.JSON(http.StatusOK, turn)
}
