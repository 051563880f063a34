package models

import "time"

// ConnectionState tracks whether a participant currently holds a live
// streaming connection for the session.
type ConnectionState string

const (
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// Participant is one member of an activity session. Score stays nil until
// the first round resolves; invited users carry a zero JoinedAt until they
// actually join.
type Participant struct {
	UserID          string          `json:"user_id"`
	JoinedAt        *time.Time      `json:"joined_at,omitempty"`
	Ready           bool            `json:"ready"`
	ConnectionState ConnectionState `json:"connection_state"`
	Score           *float64        `json:"score,omitempty"`
	TotalElapsedMs  int64           `json:"total_elapsed_ms"`
	AntiCheat       *AntiCheatFlags `json:"anti_cheat,omitempty"`
}

// Joined reports whether the participant has completed joinSession.
func (p *Participant) Joined() bool {
	return p.JoinedAt != nil
}
