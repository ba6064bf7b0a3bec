package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/rs/zerolog"

	"geniebot/internal/auth"
	"geniebot/internal/blobstore"
	"geniebot/internal/bot"
	"geniebot/internal/config"
	"geniebot/internal/foundry"
	"geniebot/internal/genie"
	"geniebot/internal/orchestrator"
	"geniebot/internal/session"
	"geniebot/internal/store"
	"geniebot/internal/teams"
	handler "geniebot/internal/transport/http"
	"geniebot/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info().
		Int("port", cfg.Port).
		Int("internal_port", cfg.InternalPort).
		Str("runtime_mode", cfg.RuntimeMode).
		Str("model", cfg.ModelDeployment).
		Msg("starting geniebot")

	if err := os.MkdirAll(cfg.ImagesDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.ImagesDir).Msg("failed to create images directory")
	}

	// Initialize turn store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	// Azure credential shared by the Foundry client and the blob sink
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to acquire azure credential")
	}

	foundryClient := foundry.NewClient(cfg.FoundryURL, foundry.NewAzureTokenSource(cred), logger)

	sink, err := blobstore.NewAzureSink(cfg.StorageAccount, cfg.StorageContainer, cred, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blob sink")
	}

	// Agent runtime adapter
	var runtime foundry.Runtime
	switch cfg.RuntimeMode {
	case config.RuntimeModeBlocking:
		runtime = foundry.NewBlockingRuntime(foundryClient, cfg.RunTimeout)
	default:
		runtime = foundry.NewPollRuntime(foundryClient, cfg.RunPollInterval, cfg.RunTimeout, logger)
	}

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	orch := orchestrator.New(foundryClient, runtime, policyEngine, sink, cfg.ModelDeployment, cfg.ImagesDir, logger)

	// Chat-side collaborators
	genieClient := genie.NewClient(cfg.DatabricksHost, logger)
	broker := auth.NewBroker(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, logger)
	connector := teams.NewConnector(cfg.ClientID, cfg.ClientSecret, logger)
	sessions := session.NewManager()

	botHandler := bot.New(
		bot.Config{
			ConnectionName:  cfg.ADBConnectionName,
			OAuthConnection: cfg.OAuthConnectionName,
		},
		orch, genieClient, broker, connector, connector, foundryClient,
		sessions, db, sink, logger,
	)

	externalServer := handler.NewExternalServer(botHandler, logger)
	internalServer := handler.NewInternalServer(db)

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start external server")
		}
	}()

	// Start internal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start internal server")
		}
	}()

	logger.Info().Int("port", cfg.Port).Msg("external API started")
	logger.Info().Int("port", cfg.InternalPort).Msg("internal API started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown external server gracefully")
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown internal server gracefully")
	}

	logger.Info().Msg("stopped")
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
}
