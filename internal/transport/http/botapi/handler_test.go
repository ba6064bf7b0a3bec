package botapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"geniebot/internal/teams"
)

type recordingBot struct {
	received chan *teams.Activity
}

func (r *recordingBot) OnActivity(_ context.Context, activity *teams.Activity) {
	r.received <- activity
}

func TestMessagesDispatchesActivity(t *testing.T) {
	e := echo.New()
	bot := &recordingBot{received: make(chan *teams.Activity, 1)}
	h := NewHandler(bot, zerolog.Nop())

	body := `{"type":"message","id":"act-1","text":"hi","conversation":{"id":"conv-1"},"serviceUrl":"https://smba.local"}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Messages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case activity := <-bot.received:
		if activity.Type != "message" || activity.Text != "hi" || activity.Conversation.ID != "conv-1" {
			t.Fatalf("unexpected activity: %+v", activity)
		}
	case <-time.After(time.Second):
		t.Fatal("activity was not dispatched")
	}
}

func TestMessagesRejectsInvalidBody(t *testing.T) {
	e := echo.New()
	bot := &recordingBot{received: make(chan *teams.Activity, 1)}
	h := NewHandler(bot, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Messages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	select {
	case <-bot.received:
		t.Fatal("invalid activity must not be dispatched")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := NewHandler(&recordingBot{received: make(chan *teams.Activity, 1)}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Health(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}
