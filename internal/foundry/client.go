// Package foundry is a client for the Azure AI Foundry agent runtime: agent
// definitions, threads, messages, runs, and project connections.
package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

const defaultAPIVersion = "v1"

// TokenSource yields a bearer token for the Foundry endpoint.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// credentialScope is the audience of the Foundry project endpoint.
const credentialScope = "https://ai.azure.com/.default"

// NewAzureTokenSource wraps an azcore credential (DefaultAzureCredential in
// production) as a TokenSource.
func NewAzureTokenSource(cred azcore.TokenCredential) TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (string, error) {
		tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{credentialScope}})
		if err != nil {
			return "", err
		}
		return tok.Token, nil
	})
}

// Client talks to one Foundry project endpoint.
type Client struct {
	endpoint   string
	apiVersion string
	tokens     TokenSource
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a Foundry client for the given project endpoint.
func NewClient(endpoint string, tokens TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiVersion: defaultAPIVersion,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger,
	}
}

// Connection is a project connection with its provider metadata.
type Connection struct {
	Name     string            `json:"name"`
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// GenieSpaceID returns the Genie space id carried by a Databricks connection
// of type genie, or "" for any other connection shape.
func (c *Connection) GenieSpaceID() string {
	if c.Metadata["azure_databricks_connection_type"] != "genie" {
		return ""
	}
	return c.Metadata["genie_space_id"]
}

// GetConnection fetches a project connection by name.
func (c *Client) GetConnection(ctx context.Context, name string) (*Connection, error) {
	var conn Connection
	if err := c.do(ctx, http.MethodGet, "/connections/"+url.PathEscape(name), nil, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// CreateAgentRequest describes an ephemeral agent definition.
type CreateAgentRequest struct {
	Model        string           `json:"model"`
	Name         string           `json:"name"`
	Instructions string           `json:"instructions"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// ToolDefinition is one tool attached to an agent definition.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function interface{} `json:"function,omitempty"`
}

// FunctionTool wraps a function schema as a tool definition.
func FunctionTool(function interface{}) ToolDefinition {
	return ToolDefinition{Type: "function", Function: function}
}

// CodeInterpreterTool is the hosted code-execution tool.
func CodeInterpreterTool() ToolDefinition {
	return ToolDefinition{Type: "code_interpreter"}
}

// Agent is a registered agent definition.
type Agent struct {
	ID string `json:"id"`
}

// CreateAgent registers an agent definition.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, http.MethodPost, "/assistants", req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// DeleteAgent removes an agent definition.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return c.do(ctx, http.MethodDelete, "/assistants/"+url.PathEscape(agentID), nil, nil)
}

// Thread is a message thread.
type Thread struct {
	ID string `json:"id"`
}

// CreateThread creates an empty thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]string{}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// Message is one thread message with its ordered content blocks.
type Message struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"`
	Content []ContentItem `json:"content"`
}

// ContentItem is a single text or image content block.
type ContentItem struct {
	Type      string        `json:"type"`
	Text      *TextContent  `json:"text,omitempty"`
	ImageFile *ImageFileRef `json:"image_file,omitempty"`
}

// TextContent is the text block body.
type TextContent struct {
	Value string `json:"value"`
}

// ImageFileRef points at a generated image file.
type ImageFileRef struct {
	FileID string `json:"file_id"`
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	var msg Message
	body := map[string]string{"role": role, "content": content}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type messageList struct {
	Data []Message `json:"data"`
}

// ListMessages returns the thread's messages scoped to one run, newest
// first.
func (c *Client) ListMessages(ctx context.Context, threadID, runID string) ([]Message, error) {
	path := fmt.Sprintf("/threads/%s/messages?run_id=%s&order=desc", url.PathEscape(threadID), url.QueryEscape(runID))
	var list messageList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// FileContent downloads a generated file's bytes.
func (c *Client) FileContent(ctx context.Context, fileID string) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content")
}

// CreateRun starts a run of the agent over the thread.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (*Run, error) {
	var run Run
	body := map[string]string{"assistant_id": agentID}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun fetches the current run state.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs/%s", url.PathEscape(threadID), url.PathEscape(runID))
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// CancelRun asks the runtime to cancel a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	path := fmt.Sprintf("/threads/%s/runs/%s/cancel", url.PathEscape(threadID), url.PathEscape(runID))
	return c.do(ctx, http.MethodPost, path, map[string]string{}, nil)
}

// SubmitToolOutputs resumes a run blocked on tool calls with the correlated
// outputs, submitted as one batch.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs/%s/submit_tool_outputs", url.PathEscape(threadID), url.PathEscape(runID))
	body := map[string]interface{}{"tool_outputs": outputs}
	if err := c.do(ctx, http.MethodPost, path, body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &domain.ServiceError{Service: "foundry", Err: fmt.Errorf("marshaling request: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.requestURL(path), reader)
	if err != nil {
		return &domain.ServiceError{Service: "foundry", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ServiceError{Service: "foundry", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ServiceError{Service: "foundry", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ServiceError{
			Service: "foundry",
			Err:     fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &domain.ServiceError{Service: "foundry", Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.requestURL(path), nil)
	if err != nil {
		return nil, &domain.ServiceError{Service: "foundry", Err: err}
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ServiceError{Service: "foundry", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ServiceError{Service: "foundry", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ServiceError{
			Service: "foundry",
			Err:     fmt.Errorf("%s %s returned %d", method, path, resp.StatusCode),
		}
	}
	return respBody, nil
}

func (c *Client) requestURL(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return c.endpoint + path + sep + "api-version=" + c.apiVersion
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return &domain.AuthError{Op: "foundry credential", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
