package models

// Snapshot is a consistent read of one session for reconnecting clients:
// the session record, the ordered participant set, and the in-flight round
// if one is running.
type Snapshot struct {
	Session      ActivitySession `json:"session"`
	Participants []Participant   `json:"participants"`
	CurrentRound *RoundView      `json:"current_round,omitempty"`
}
