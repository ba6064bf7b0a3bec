// Package genie is a client for the Databricks Genie conversational query
// API. It starts or continues a conversation, waits for the platform to
// finish processing, and shapes the answer into the tool-output payload.
package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

const fallbackMessage = "No content returned."

// Message states reported by the Genie API.
const (
	messageStateCompleted = "COMPLETED"
	messageStateFailed    = "FAILED"
	messageStateCancelled = "CANCELLED"
)

// AskRequest carries one question into a Genie space.
type AskRequest struct {
	Question       string
	ConversationID string // empty starts a new conversation
	SpaceID        string
	Token          string
}

// Client talks to one Databricks workspace.
type Client struct {
	host         string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          zerolog.Logger
}

// NewClient creates a Genie client for the given workspace host.
func NewClient(host string, logger zerolog.Logger) *Client {
	return &Client{
		host:         strings.TrimSuffix(host, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: time.Second,
		pollTimeout:  5 * time.Minute,
		log:          logger,
	}
}

// Ask runs one conversation turn and blocks until the platform has finished
// processing. Missing space id or token fail fast before any network call.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*domain.QueryPayload, error) {
	if req.SpaceID == "" {
		return nil, domain.ErrMissingWorkspace
	}
	if req.Token == "" {
		return nil, domain.ErrMissingToken
	}

	msg, err := c.sendAndWait(ctx, req)
	if err != nil {
		return nil, err
	}

	if id := msg.statementID(); id != "" {
		table, err := c.fetchTable(ctx, req.Token, id)
		if err != nil {
			return nil, err
		}
		return &domain.QueryPayload{ConversationID: msg.ConversationID, Table: table}, nil
	}

	// No structured result: fall back to the message text, then to the
	// first non-empty text attachment.
	if msg.Content != "" {
		return &domain.QueryPayload{ConversationID: msg.ConversationID, Message: msg.Content}, nil
	}
	for _, att := range msg.Attachments {
		if att.Text != nil && att.Text.Content != "" {
			return &domain.QueryPayload{ConversationID: msg.ConversationID, Message: att.Text.Content}, nil
		}
	}
	return &domain.QueryPayload{ConversationID: msg.ConversationID, Message: fallbackMessage}, nil
}

// Wire types of the Genie REST surface.

type genieMessage struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Status         string            `json:"status"`
	Content        string            `json:"content"`
	Attachments    []genieAttachment `json:"attachments"`
	QueryResult    *genieQueryResult `json:"query_result"`
	Error          *genieError       `json:"error"`
}

// statementID returns the executed statement's id, whichever field the
// platform reported it in.
func (m *genieMessage) statementID() string {
	if m.QueryResult == nil {
		return ""
	}
	if m.QueryResult.StatementResponse != nil && m.QueryResult.StatementResponse.StatementID != "" {
		return m.QueryResult.StatementResponse.StatementID
	}
	return m.QueryResult.StatementID
}

type genieAttachment struct {
	Text *genieText `json:"text"`
}

type genieText struct {
	Content string `json:"content"`
}

type genieQueryResult struct {
	StatementResponse *statementRef `json:"statement_response"`
	StatementID       string        `json:"statement_id"`
}

type statementRef struct {
	StatementID string `json:"statement_id"`
}

type genieError struct {
	Type    string `json:"type"`
	Message string `json:"error"`
}

type startConversationResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type statementResult struct {
	Manifest struct {
		Schema struct {
			Columns []struct {
				Name     string `json:"name"`
				TypeName string `json:"type_name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result struct {
		DataArray [][]*string `json:"data_array"`
	} `json:"result"`
}

func (c *Client) sendAndWait(ctx context.Context, req AskRequest) (*genieMessage, error) {
	var (
		conversationID string
		messageID      string
	)

	if req.ConversationID == "" {
		path := fmt.Sprintf("/api/2.0/genie/spaces/%s/start-conversation", req.SpaceID)
		var started startConversationResponse
		if err := c.do(ctx, req.Token, http.MethodPost, path, map[string]string{"content": req.Question}, &started); err != nil {
			return nil, err
		}
		conversationID, messageID = started.ConversationID, started.MessageID
	} else {
		path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages", req.SpaceID, req.ConversationID)
		var msg genieMessage
		if err := c.do(ctx, req.Token, http.MethodPost, path, map[string]string{"content": req.Question}, &msg); err != nil {
			return nil, err
		}
		conversationID, messageID = req.ConversationID, msg.ID
	}

	return c.waitForMessage(ctx, req.Token, req.SpaceID, conversationID, messageID)
}

func (c *Client) waitForMessage(ctx context.Context, token, spaceID, conversationID, messageID string) (*genieMessage, error) {
	path := fmt.Sprintf("/api/2.0/genie/spaces/%s/conversations/%s/messages/%s", spaceID, conversationID, messageID)
	deadline := time.Now().Add(c.pollTimeout)

	for {
		var msg genieMessage
		if err := c.do(ctx, token, http.MethodGet, path, nil, &msg); err != nil {
			return nil, err
		}
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}

		switch msg.Status {
		case messageStateCompleted:
			return &msg, nil
		case messageStateFailed, messageStateCancelled:
			detail := strings.ToLower(msg.Status)
			if msg.Error != nil && msg.Error.Message != "" {
				detail = msg.Error.Message
			}
			return nil, &domain.ServiceError{Service: "genie", Err: fmt.Errorf("message %s: %s", messageID, detail)}
		}

		if time.Now().After(deadline) {
			return nil, &domain.ServiceError{Service: "genie", Err: fmt.Errorf("message %s still %s after %v", messageID, msg.Status, c.pollTimeout)}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchTable(ctx context.Context, token, statementID string) (*domain.Table, error) {
	var result statementResult
	path := fmt.Sprintf("/api/2.0/sql/statements/%s", statementID)
	if err := c.do(ctx, token, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	columns := result.Manifest.Schema.Columns
	table := &domain.Table{
		Columns: make([]string, len(columns)),
		Rows:    make([][]string, 0, len(result.Result.DataArray)),
	}
	for i, col := range columns {
		table.Columns[i] = col.Name
	}
	for _, row := range result.Result.DataArray {
		formatted := make([]string, len(columns))
		for i := range columns {
			var cell *string
			if i < len(row) {
				cell = row[i]
			}
			formatted[i] = formatCell(cell, columns[i].TypeName)
		}
		table.Rows = append(table.Rows, formatted)
	}
	return table, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &domain.ServiceError{Service: "genie", Err: fmt.Errorf("marshaling request: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return &domain.ServiceError{Service: "genie", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ServiceError{Service: "genie", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ServiceError{Service: "genie", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.ServiceError{
			Service: "genie",
			Err:     fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &domain.ServiceError{Service: "genie", Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}
