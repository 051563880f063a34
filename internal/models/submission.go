package models

import (
	"encoding/json"
	"time"
)

// Metrics are the server-derived measurements for one submission. Which
// fields are populated depends on the activity.
type Metrics struct {
	WPM      float64 `json:"wpm,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Correct  int     `json:"correct,omitempty"`
}

// Submission records a participant's final answer for a round. Immutable
// after creation; at most one per participant per round.
type Submission struct {
	UserID           string          `json:"user_id"`
	RoundIndex       int             `json:"round_index"`
	Payload          json.RawMessage `json:"payload"`
	ClientElapsedMs  int64           `json:"client_elapsed_ms"`
	ServerReceivedAt time.Time       `json:"server_received_at"`
	// ElapsedMs is the authoritative elapsed time, derived from server
	// receipt relative to round start. The client-reported value is kept
	// only as an anomaly signal.
	ElapsedMs int64   `json:"elapsed_ms"`
	Metrics   Metrics `json:"metrics"`
	Score     float64 `json:"score"`
}
