package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityKey identifies the kind of competitive activity a session runs.
type ActivityKey string

const (
	ActivitySpeedTyping       ActivityKey = "speed_typing"
	ActivityTypingDuel        ActivityKey = "typing_duel"
	ActivityQuickTrivia       ActivityKey = "quick_trivia"
	ActivityTicTacToe         ActivityKey = "tic_tac_toe"
	ActivityRockPaperScissors ActivityKey = "rock_paper_scissors"
	ActivityStoryRelay        ActivityKey = "story_relay"
)

// SessionStatus defines the lifecycle state of an activity session.
type SessionStatus string

const (
	StatusLobby     SessionStatus = "lobby"
	StatusRunning   SessionStatus = "running"
	StatusEnded     SessionStatus = "ended"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// CanTransitionTo enforces the monotonic lifecycle:
// lobby -> running -> ended, with lobby/running -> cancelled as escapes.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusLobby:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusEnded || next == StatusCancelled
	default:
		return false
	}
}

// ActivitySession is the authoritative record for one session instance.
type ActivitySession struct {
	ID                uuid.UUID     `json:"id"`
	ActivityKey       ActivityKey   `json:"activity_key"`
	CreatorUserID     string        `json:"creator_user_id"`
	CampusID          string        `json:"campus_id,omitempty"`
	Status            SessionStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	CurrentRoundIndex int           `json:"current_round_index"`
	RoundDeadlineAt   *time.Time    `json:"round_deadline_at,omitempty"`
}

// SessionSummary is the listing view consumed by invite discovery.
type SessionSummary struct {
	ID             uuid.UUID     `json:"id"`
	ActivityKey    ActivityKey   `json:"activity_key"`
	CreatorUserID  string        `json:"creator_user_id"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ParticipantIDs []string      `json:"participant_ids"`
}
