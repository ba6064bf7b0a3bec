package internalapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"geniebot/internal/domain"
	"geniebot/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewHandler(db), db
}

func seedTurn(t *testing.T, db store.Store, turnID, sessionID string) {
	t.Helper()
	err := db.CreateTurn(context.Background(), &domain.Turn{
		TurnID:    turnID,
		SessionID: sessionID,
		Question:  "q",
		Status:    domain.TurnStatusCompleted,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}
}

func TestListTurns(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	seedTurn(t, db, "t1", "s1")
	seedTurn(t, db, "t2", "s2")

	req := httptest.NewRequest(http.MethodGet, "/internal/turns", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListTurns(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Turns []domain.Turn `json:"turns"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 || len(resp.Turns) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListTurnsBySession(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	seedTurn(t, db, "t1", "s1")
	seedTurn(t, db, "t2", "s2")

	req := httptest.NewRequest(http.MethodGet, "/internal/turns?session_id=s1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListTurns(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp struct {
		Turns []domain.Turn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Turns) != 1 || resp.Turns[0].TurnID != "t1" {
		t.Fatalf("unexpected turns: %+v", resp.Turns)
	}
}

func TestListTurnsBadLimit(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/turns?limit=zero", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListTurns(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetTurnNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/internal/turns/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("turn_id")
	c.SetParamValues("missing")

	if err := h.GetTurn(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTurnSuccess(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	seedTurn(t, db, "t1", "s1")

	req := httptest.NewRequest(http.MethodGet, "/internal/turns/t1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("turn_id")
	c.SetParamValues("t1")

	if err := h.GetTurn(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var turn domain.Turn
	if err := json.Unmarshal(rec.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if turn.TurnID != "t1" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
}
