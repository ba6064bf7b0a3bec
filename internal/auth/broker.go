// Package auth implements the OAuth2 on-behalf-of token exchange. A user's
// inbound identity token is swapped for downstream access tokens scoped to
// the Databricks data platform or Microsoft Graph.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

// DatabricksResource is the fixed Entra application id of the Azure
// Databricks service.
const DatabricksResource = "2ff814a6-3304-4ab8-85cb-cd0e6f879c1d"

const graphScope = "https://graph.microsoft.com/.default"

// Token is a bearer credential with its reported lifetime.
type Token struct {
	Value     string
	ExpiresIn time.Duration
}

// Broker exchanges user tokens via the on-behalf-of grant.
type Broker struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewBroker creates a broker for the given tenant and app registration.
func NewBroker(tenantID, clientID, clientSecret string, logger zerolog.Logger) *Broker {
	return &Broker{
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		log:          logger,
	}
}

// NewBrokerForEndpoint creates a broker against an explicit token endpoint.
// Used by tests and non-public clouds.
func NewBrokerForEndpoint(tokenURL, clientID, clientSecret string, logger zerolog.Logger) *Broker {
	b := NewBroker("common", clientID, clientSecret, logger)
	b.tokenURL = tokenURL
	return b
}

// DatabricksToken exchanges the user token for a data-platform token.
func (b *Broker) DatabricksToken(ctx context.Context, userToken string) (*Token, error) {
	return b.exchange(ctx, DatabricksResource+"/.default", userToken)
}

// GraphToken exchanges the user token for a directory-graph token.
func (b *Broker) GraphToken(ctx context.Context, userToken string) (*Token, error) {
	return b.exchange(ctx, graphScope, userToken)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (b *Broker) exchange(ctx context.Context, scope, userToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("scope", scope)
	form.Set("requested_token_use", "on_behalf_of")
	form.Set("assertion", userToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.AuthError{Op: "obo exchange", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(b.clientID, b.clientSecret)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &domain.AuthError{Op: "obo exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.AuthError{Op: "obo exchange", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		b.log.Error().Int("status", resp.StatusCode).Str("scope", scope).Msg("token endpoint rejected OBO exchange")
		return nil, &domain.AuthError{
			Op:  "obo exchange",
			Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &domain.AuthError{Op: "obo exchange", Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &domain.AuthError{Op: "obo exchange", Err: fmt.Errorf("token response has no access_token")}
	}

	return &Token{
		Value:     tr.AccessToken,
		ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}
