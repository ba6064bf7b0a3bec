package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func staticTokens(tok string) TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (string, error) { return tok, nil })
}

func TestGetConnectionGenieSpace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/connections/adb-conn" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") == "" {
			t.Fatalf("missing api-version query")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer foundry-token" {
			t.Fatalf("missing bearer token: %q", got)
		}
		fmt.Fprint(w, `{"name":"adb-conn","id":"c1","metadata":{"azure_databricks_connection_type":"genie","genie_space_id":"space-42"}}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, staticTokens("foundry-token"), zerolog.Nop())
	conn, err := c.GetConnection(context.Background(), "adb-conn")
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	if conn.GenieSpaceID() != "space-42" {
		t.Fatalf("unexpected space id: %q", conn.GenieSpaceID())
	}
}

func TestGenieSpaceIDRequiresGenieType(t *testing.T) {
	conn := &Connection{Metadata: map[string]string{
		"azure_databricks_connection_type": "workspace",
		"genie_space_id":                   "space-42",
	}}
	if conn.GenieSpaceID() != "" {
		t.Fatalf("non-genie connection must not expose a space id")
	}
}

func TestCreateAgentWireShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assistants" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Model        string `json:"model"`
			Name         string `json:"name"`
			Instructions string `json:"instructions"`
			Tools        []struct {
				Type string `json:"type"`
			} `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Model != "gpt-4o" || len(body.Tools) != 2 {
			t.Fatalf("unexpected body: %+v", body)
		}
		if body.Tools[0].Type != "function" || body.Tools[1].Type != "code_interpreter" {
			t.Fatalf("unexpected tools: %+v", body.Tools)
		}
		fmt.Fprint(w, `{"id":"agent-1"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, staticTokens("t"), zerolog.Nop())
	agent, err := c.CreateAgent(context.Background(), CreateAgentRequest{
		Model:        "gpt-4o",
		Name:         "genie-assistant",
		Instructions: "answer questions",
		Tools: []ToolDefinition{
			FunctionTool(map[string]string{"name": "ask_genie"}),
			CodeInterpreterTool(),
		},
	})
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if agent.ID != "agent-1" {
		t.Fatalf("unexpected agent id: %q", agent.ID)
	}
}

func TestListMessagesScopedToRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("run_id") != "run-1" {
			t.Fatalf("run scope missing: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data":[
			{"id":"m2","role":"assistant","content":[
				{"type":"text","text":{"value":"here is your chart"}},
				{"type":"image_file","image_file":{"file_id":"file-9"}}
			]},
			{"id":"m1","role":"user","content":[{"type":"text","text":{"value":"question"}}]}
		]}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, staticTokens("t"), zerolog.Nop())
	msgs, err := c.ListMessages(context.Background(), "thread-1", "run-1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m2" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if msgs[0].Content[1].ImageFile.FileID != "file-9" {
		t.Fatalf("image block not parsed: %+v", msgs[0].Content)
	}
}

func TestRunFunctionCallsFiltersHostedTools(t *testing.T) {
	run := &Run{
		Status: RunStatusRequiresAction,
		RequiredAction: &RequiredAction{
			Type: "submit_tool_outputs",
			SubmitToolOutputs: &SubmitToolOutputs{ToolCalls: []ToolCall{
				{ID: "call-1", Type: "function", Function: &FunctionCall{Name: "ask_genie", Arguments: `{"question":"q"}`}},
				{ID: "call-2", Type: "code_interpreter"},
			}},
		},
	}
	calls := run.FunctionCalls()
	if len(calls) != 1 || calls[0].ID != "call-1" {
		t.Fatalf("expected only the function call, got %+v", calls)
	}
}
