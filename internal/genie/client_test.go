package genie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

func newTestClient(host string) *Client {
	c := NewClient(host, zerolog.Nop())
	c.pollInterval = time.Millisecond
	c.pollTimeout = time.Second
	return c
}

// fakeGenie serves a minimal Genie space with one canned answer.
type fakeGenie struct {
	calls          int64
	messageBody    string
	statementBody  string
	pendingRounds  int
	observedRounds int64
}

func (f *fakeGenie) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/genie/spaces/space-1/start-conversation", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer adb-token" {
			t.Errorf("missing bearer token: %q", got)
		}
		fmt.Fprint(w, `{"conversation_id":"conv-1","message_id":"msg-1"}`)
	})
	mux.HandleFunc("/api/2.0/genie/spaces/space-1/conversations/conv-1/messages", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		fmt.Fprint(w, `{"id":"msg-2","conversation_id":"conv-1","status":"IN_PROGRESS"}`)
	})
	mux.HandleFunc("/api/2.0/genie/spaces/space-1/conversations/conv-1/messages/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		if n := atomic.AddInt64(&f.observedRounds, 1); int(n) <= f.pendingRounds {
			fmt.Fprint(w, `{"id":"msg-1","conversation_id":"conv-1","status":"EXECUTING_QUERY"}`)
			return
		}
		fmt.Fprint(w, f.messageBody)
	})
	mux.HandleFunc("/api/2.0/sql/statements/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&f.calls, 1)
		fmt.Fprint(w, f.statementBody)
	})
	return mux
}

func TestAskFailsFastWithoutWorkspaceOrToken(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))
	defer server.Close()
	c := newTestClient(server.URL)

	_, err := c.Ask(context.Background(), AskRequest{Question: "q", Token: "tok"})
	if !errors.Is(err, domain.ErrMissingWorkspace) {
		t.Fatalf("expected ErrMissingWorkspace, got %v", err)
	}
	_, err = c.Ask(context.Background(), AskRequest{Question: "q", SpaceID: "space-1"})
	if !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("precondition failure must not hit the network, saw %d calls", calls)
	}
}

func TestAskReturnsFormattedTable(t *testing.T) {
	f := &fakeGenie{
		pendingRounds: 2,
		messageBody:   `{"id":"msg-1","conversation_id":"conv-1","status":"COMPLETED","query_result":{"statement_response":{"statement_id":"stmt-1"}}}`,
		statementBody: `{
			"manifest":{"schema":{"columns":[
				{"name":"region","type_name":"STRING"},
				{"name":"revenue","type_name":"DOUBLE"},
				{"name":"orders","type_name":"BIGINT"}
			]}},
			"result":{"data_array":[
				["Americas","1234567.891","1234567"],
				["EMEA",null,"42"]
			]}
		}`,
	}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	c := newTestClient(server.URL)
	payload, err := c.Ask(context.Background(), AskRequest{
		Question: "What were Q1 sales?",
		SpaceID:  "space-1",
		Token:    "adb-token",
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if payload.ConversationID != "conv-1" {
		t.Fatalf("unexpected conversation id: %q", payload.ConversationID)
	}
	if payload.Table == nil {
		t.Fatalf("expected table, got message %q", payload.Message)
	}

	// The payload must serialize to {conversation_id, table:{columns,rows}}
	// with rectangular rows.
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var decoded struct {
		ConversationID string `json:"conversation_id"`
		Table          struct {
			Columns []string   `json:"columns"`
			Rows    [][]string `json:"rows"`
		} `json:"table"`
	}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	for i, row := range decoded.Table.Rows {
		if len(row) != len(decoded.Table.Columns) {
			t.Fatalf("row %d has %d cells for %d columns", i, len(row), len(decoded.Table.Columns))
		}
	}

	want := [][]string{
		{"Americas", "1,234,567.89", "1,234,567"},
		{"EMEA", "NULL", "42"},
	}
	for i, row := range want {
		for j, cell := range row {
			if decoded.Table.Rows[i][j] != cell {
				t.Errorf("cell [%d][%d] = %q, want %q", i, j, decoded.Table.Rows[i][j], cell)
			}
		}
	}
}

func TestAskFallsBackToAttachmentText(t *testing.T) {
	f := &fakeGenie{
		messageBody: `{"id":"msg-1","conversation_id":"conv-1","status":"COMPLETED","content":"","attachments":[{"text":{"content":""}},{"text":{"content":"The answer is 42."}}]}`,
	}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	c := newTestClient(server.URL)
	payload, err := c.Ask(context.Background(), AskRequest{Question: "q", SpaceID: "space-1", Token: "adb-token"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if payload.Message != "The answer is 42." {
		t.Fatalf("unexpected message: %q", payload.Message)
	}
	if payload.Table != nil {
		t.Fatalf("expected no table")
	}
}

func TestAskFallbackLiteral(t *testing.T) {
	f := &fakeGenie{
		messageBody: `{"id":"msg-1","conversation_id":"conv-1","status":"COMPLETED"}`,
	}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	c := newTestClient(server.URL)
	payload, err := c.Ask(context.Background(), AskRequest{Question: "q", SpaceID: "space-1", Token: "adb-token"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if payload.Message != "No content returned." {
		t.Fatalf("unexpected fallback: %q", payload.Message)
	}
}

func TestAskContinuesConversation(t *testing.T) {
	f := &fakeGenie{
		messageBody: `{"id":"msg-2","conversation_id":"conv-1","status":"COMPLETED","content":"follow-up answer"}`,
	}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	c := newTestClient(server.URL)
	payload, err := c.Ask(context.Background(), AskRequest{
		Question:       "show that as a chart",
		ConversationID: "conv-1",
		SpaceID:        "space-1",
		Token:          "adb-token",
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if payload.ConversationID != "conv-1" {
		t.Fatalf("conversation id not preserved: %q", payload.ConversationID)
	}
	if payload.Message != "follow-up answer" {
		t.Fatalf("unexpected message: %q", payload.Message)
	}
}

func TestAskFailedMessageBecomesServiceError(t *testing.T) {
	f := &fakeGenie{
		messageBody: `{"id":"msg-1","conversation_id":"conv-1","status":"FAILED","error":{"error":"query blew up"}}`,
	}
	server := httptest.NewServer(f.handler(t))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Ask(context.Background(), AskRequest{Question: "q", SpaceID: "space-1", Token: "adb-token"})
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
}
