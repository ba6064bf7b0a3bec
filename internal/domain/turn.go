package domain

import "time"

// Turn is the audit record of one processed chat turn. It exists for
// operational inspection only; conversation context is never rebuilt from it.
type Turn struct {
	TurnID     string     `json:"turn_id"`
	SessionID  string     `json:"session_id"`
	Question   string     `json:"question"`
	Status     TurnStatus `json:"status"`
	ReplyChars int        `json:"reply_chars"`
	ImageName  string     `json:"image_name,omitempty"`
	LatencyMs  int64      `json:"latency_ms"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
