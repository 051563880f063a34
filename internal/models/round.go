package models

import (
	"encoding/json"
	"time"
)

// RoundView is the client-visible shape of a round. The canonical payload
// lives server-side; anything that must not reach clients (e.g. trivia
// answers) is stripped during marshalling by the activity payload types.
type RoundView struct {
	Index      int             `json:"index"`
	Payload    json.RawMessage `json:"payload"`
	StartedAt  time.Time       `json:"started_at"`
	DeadlineAt time.Time       `json:"deadline_at"`
}
