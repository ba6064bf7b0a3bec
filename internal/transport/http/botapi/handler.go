// Package botapi exposes the Bot Framework messaging endpoint.
package botapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"geniebot/internal/teams"
)

// ActivityHandler processes one parsed bot activity.
type ActivityHandler interface {
	OnActivity(ctx context.Context, activity *teams.Activity)
}

// Handler handles Bot Framework HTTP requests.
type Handler struct {
	bot ActivityHandler
	log zerolog.Logger
}

// NewHandler creates a new bot API handler.
func NewHandler(bot ActivityHandler, logger zerolog.Logger) *Handler {
	return &Handler{bot: bot, log: logger}
}

// RegisterRoutes registers the messaging routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/messages", h.Messages)
	e.GET("/healthz", h.Health)
}

// Messages accepts one Bot Framework activity. The connector expects a fast
// acknowledgement, so the turn runs detached and replies arrive through the
// conversation's reply URL.
// POST /api/messages
func (h *Handler) Messages(c echo.Context) error {
	var activity teams.Activity
	if err := c.Bind(&activity); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid activity"})
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Interface("panic", r).Str("activity_id", activity.ID).Msg("turn panicked")
			}
		}()
		h.bot.OnActivity(context.Background(), &activity)
	}()

	return c.NoContent(http.StatusOK)
}

// Health reports listener liveness.
// GET /healthz
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
