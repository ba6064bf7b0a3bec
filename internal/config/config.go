// Package config provides environment-driven configuration for the bot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// RuntimeMode selects the agent-runtime adapter.
const (
	RuntimeModePoll     = "poll"
	RuntimeModeBlocking = "blocking"
)

// Config holds the bot configuration.
type Config struct {
	// Azure AI Foundry project
	FoundryURL        string `validate:"required,url"`
	ADBConnectionName string `validate:"required"`
	ModelDeployment   string `validate:"required"`

	// Databricks
	DatabricksHost string `validate:"required,url"`

	// Entra app registration used for the OBO exchange and the bot identity
	TenantID     string `validate:"required"`
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`

	// Bot Framework OAuth connection used to obtain the user token
	OAuthConnectionName string `validate:"required"`

	// Blob storage for rendered visualizations
	StorageAccount   string `validate:"required"`
	StorageContainer string `validate:"required"`

	// Server settings
	Port         int `validate:"gt=0"`
	InternalPort int `validate:"gt=0"`

	// Turn-record database
	DatabaseURL string `validate:"required"`

	// Agent runtime
	RuntimeMode     string `validate:"oneof=poll blocking"`
	RunPollInterval time.Duration
	RunTimeout      time.Duration

	// Local scratch directory for generated images
	ImagesDir string `validate:"required"`

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		FoundryURL:          getEnv("FOUNDRY_URL", ""),
		ADBConnectionName:   getEnv("ADB_CONNECTION_NAME", ""),
		ModelDeployment:     getEnv("MODEL_DEPLOYMENT_NAME", "gpt-4o"),
		DatabricksHost:      getEnv("DATABRICKS_HOST", ""),
		TenantID:            getEnv("TENANT_ID", ""),
		ClientID:            getEnv("CLIENT_ID", ""),
		ClientSecret:        getEnv("CLIENT_SECRET", ""),
		OAuthConnectionName: getEnv("OAUTH_CONNECTION_NAME", "GRAPH"),
		StorageAccount:      getEnv("STORAGE_ACCTNAME", ""),
		StorageContainer:    getEnv("STORAGE_CONTNAME", ""),
		Port:                getEnvInt("PORT", 3978),
		InternalPort:        getEnvInt("INTERNAL_PORT", 3979),
		DatabaseURL:         getEnv("DATABASE_URL", "file:geniebot.db?cache=shared&mode=rwc"),
		RuntimeMode:         getEnv("AGENT_RUNTIME_MODE", RuntimeModePoll),
		RunPollInterval:     time.Duration(getEnvInt("RUN_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		RunTimeout:          time.Duration(getEnvInt("RUN_TIMEOUT_MS", 300000)) * time.Millisecond,
		ImagesDir:           getEnv("IMAGES_DIR", "./images"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
