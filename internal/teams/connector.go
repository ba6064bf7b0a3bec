package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

const (
	botTokenURL   = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	botTokenScope = "https://api.botframework.com/.default"
	userTokenBase = "https://api.botframework.com"
)

// Connector sends activities back through the Bot Framework connector and
// fetches user SSO tokens from its token service.
type Connector struct {
	appID       string
	appPassword string
	tokenURL    string
	apiBase     string
	httpClient  *http.Client
	log         zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewConnector creates a connector authenticating as the given bot app.
func NewConnector(appID, appPassword string, logger zerolog.Logger) *Connector {
	return &Connector{
		appID:       appID,
		appPassword: appPassword,
		tokenURL:    botTokenURL,
		apiBase:     userTokenBase,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         logger,
	}
}

// NewConnectorForEndpoints creates a connector against explicit token and API
// endpoints. Used by tests.
func NewConnectorForEndpoints(appID, appPassword, tokenURL, apiBase string, logger zerolog.Logger) *Connector {
	c := NewConnector(appID, appPassword, logger)
	c.tokenURL = tokenURL
	c.apiBase = strings.TrimSuffix(apiBase, "/")
	return c
}

// outgoingActivity is the reply payload posted to the connector.
type outgoingActivity struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	TextFormat  string       `json:"textFormat,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ReplyText posts a markdown text reply into the activity's conversation.
func (c *Connector) ReplyText(ctx context.Context, activity *Activity, text string) error {
	return c.reply(ctx, activity, &outgoingActivity{
		Type:       ActivityMessage,
		Text:       text,
		TextFormat: "markdown",
	})
}

// ReplyCard posts an Adaptive Card reply into the activity's conversation.
func (c *Connector) ReplyCard(ctx context.Context, activity *Activity, card *AdaptiveCard) error {
	return c.reply(ctx, activity, &outgoingActivity{
		Type: ActivityMessage,
		Attachments: []Attachment{{
			ContentType: adaptiveCardContentType,
			Content:     card,
		}},
	})
}

func (c *Connector) reply(ctx context.Context, activity *Activity, out *outgoingActivity) error {
	token, err := c.botToken(ctx)
	if err != nil {
		return err
	}

	replyURL := fmt.Sprintf("%s/v3/conversations/%s/activities/%s",
		strings.TrimSuffix(activity.ServiceURL, "/"),
		url.PathEscape(activity.Conversation.ID),
		url.PathEscape(activity.ID),
	)

	body, err := json.Marshal(out)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, replyURL, bytes.NewReader(body))
	if err != nil {
		return &domain.ServiceError{Service: "teams", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ServiceError{Service: "teams", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return &domain.ServiceError{
			Service: "teams",
			Err:     fmt.Errorf("reply returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	return nil
}

// GetUserToken fetches the signed-in user's SSO token from the Bot Framework
// token service. Returns "" without error when the user has not consented
// yet.
func (c *Connector) GetUserToken(ctx context.Context, userID, connectionName, channelID string) (string, error) {
	token, err := c.botToken(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("userId", userID)
	q.Set("connectionName", connectionName)
	q.Set("channelId", channelID)
	reqURL := c.apiBase + "/api/usertoken/GetToken?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &domain.ServiceError{Service: "teams", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.ServiceError{Service: "teams", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.ServiceError{
			Service: "teams",
			Err:     fmt.Errorf("user token request returned %d", resp.StatusCode),
		}
	}

	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &domain.ServiceError{Service: "teams", Err: err}
	}
	return tokenResp.Token, nil
}

// botToken returns a cached connector credential, refreshing it shortly
// before expiry.
func (c *Connector) botToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.appID)
	form.Set("client_secret", c.appPassword)
	form.Set("scope", botTokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.AuthError{Op: "bot credential", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.AuthError{Op: "bot credential", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &domain.AuthError{
			Op:  "bot credential",
			Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &domain.AuthError{Op: "bot credential", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return "", &domain.AuthError{Op: "bot credential", Err: fmt.Errorf("token endpoint returned no access_token")}
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	c.log.Debug().Msg("bot connector token refreshed")
	return c.accessToken, nil
}
