package events

import (
	"encoding/json"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// RoundStartedPayload announces a new round to every connected participant.
type RoundStartedPayload struct {
	RoundIndex int             `json:"round_index"`
	Payload    json.RawMessage `json:"payload"`
	StartedAt  time.Time       `json:"started_at"`
	DeadlineAt time.Time       `json:"deadline_at"`
}

// ParticipantResult is one row of the final standings.
type ParticipantResult struct {
	UserID    string         `json:"user_id"`
	Metrics   models.Metrics `json:"metrics"`
	Score     float64        `json:"score"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// SessionEndedPayload is the terminal event for a session. WinnerUserID is
// set for an outright score win; TieBreakWinnerUserID is set when equal
// scores were resolved by time advantage. Both nil means a draw.
type SessionEndedPayload struct {
	WinnerUserID         *string             `json:"winner_user_id"`
	TieBreakWinnerUserID *string             `json:"tie_break_winner_user_id"`
	Results              []ParticipantResult `json:"results"`
}

// SessionCancelledPayload reports why a session was aborted.
type SessionCancelledPayload struct {
	Reason string `json:"reason"`
}

// ParticipantJoinedPayload fires when a participant completes join.
type ParticipantJoinedPayload struct {
	UserID string `json:"user_id"`
}

// ParticipantReadyPayload fires on every ready toggle so lobbies render live.
type ParticipantReadyPayload struct {
	UserID string `json:"user_id"`
	Ready  bool   `json:"ready"`
}
