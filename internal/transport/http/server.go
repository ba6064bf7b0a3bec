// Package http provides the HTTP server implementation for the bot.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"geniebot/internal/store"
	"geniebot/internal/transport/http/botapi"
	"geniebot/internal/transport/http/internalapi"
)

// NewExternalServer creates and configures the external-facing HTTP server.
// This server handles Bot Framework activities and health probes.
func NewExternalServer(bot botapi.ActivityHandler, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	botHandler := botapi.NewHandler(bot, logger)

	// Register Routes
	botHandler.RegisterRoutes(e)

	return e
}

// NewInternalServer creates and configures the internal-facing HTTP server.
// This server exposes turn records for operators.
func NewInternalServer(turns store.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	internalHandler := internalapi.NewHandler(turns)

	// Register Routes
	internalHandler.RegisterRoutes(e)

	return e
}
