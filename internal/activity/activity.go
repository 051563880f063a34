package activity

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// Rules captures the fixed parameters of one activity kind.
type Rules struct {
	Key             models.ActivityKey
	MinParticipants int
	MaxParticipants int
	Rounds          int
	TimeLimit       time.Duration
}

// TimeLimitMs returns the round time limit in milliseconds, the unit used
// on the wire.
func (r Rules) TimeLimitMs() int64 {
	return r.TimeLimit.Milliseconds()
}

// Judge owns the activity-specific half of the round protocol: payload
// generation, per-submission scoring, and round resolution. Judges are
// stateless; all mutable round state lives in the payload the engine hands
// back on each call, under the session's lock.
type Judge interface {
	Rules() Rules

	// Generate produces the canonical payload for a round. prev is the
	// resolved payload of the previous round, nil for round 0. Activities
	// that chain state across rounds (tic-tac-toe) read it; the rest
	// ignore it.
	Generate(roundIndex int, rng *rand.Rand, prev any) (any, error)

	// ExpectedSubmitters returns the user ids whose submissions are
	// required before the round can finalize ahead of its deadline.
	ExpectedSubmitters(roundIndex int, participants []string) []string

	// Score validates one raw submission against the round payload and
	// computes server-side metrics. elapsed is the authoritative
	// server-observed duration since round start.
	Score(payload any, raw json.RawMessage, elapsed time.Duration) (models.Metrics, float64, error)

	// Resolve runs exactly once per round, under the finalize guard, with
	// every accepted submission. It returns the per-user round scores and
	// whether the session outcome is already decided (early terminal).
	Resolve(payload any, subs map[string]*models.Submission) (map[string]float64, bool)
}

// JudgeFor returns the judge for an activity key.
func JudgeFor(key models.ActivityKey) (Judge, error) {
	switch key {
	case models.ActivitySpeedTyping:
		return &typingJudge{rules: Rules{
			Key:             key,
			MinParticipants: 2,
			MaxParticipants: 8,
			Rounds:          1,
			TimeLimit:       60 * time.Second,
		}}, nil
	case models.ActivityTypingDuel:
		return &typingJudge{rules: Rules{
			Key:             key,
			MinParticipants: 2,
			MaxParticipants: 2,
			Rounds:          1,
			TimeLimit:       60 * time.Second,
		}}, nil
	case models.ActivityStoryRelay:
		return &storyRelayJudge{rules: Rules{
			Key:             key,
			MinParticipants: 2,
			MaxParticipants: 6,
			Rounds:          3,
			TimeLimit:       90 * time.Second,
		}}, nil
	case models.ActivityQuickTrivia:
		return &triviaJudge{rules: Rules{
			Key:             key,
			MinParticipants: 2,
			MaxParticipants: 8,
			Rounds:          3,
			TimeLimit:       15 * time.Second,
		}}, nil
	case models.ActivityRockPaperScissors:
		return &rpsJudge{rules: Rules{
			Key:             key,
			MinParticipants: 2,
			MaxParticipants: 2,
			Rounds:          3,
			TimeLimit:       10 * time.Second,
		}}, nil
	case models.ActivityTicTacToe:
		return &ticTacToeJudge{rules: Rules{
			Key:             key,
			MinParticipants: 2,
			MaxParticipants: 2,
			Rounds:          9,
			TimeLimit:       20 * time.Second,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown activity key %q", key)
	}
}

// allSubmitters is the default ExpectedSubmitters: every participant.
func allSubmitters(participants []string) []string {
	out := make([]string, len(participants))
	copy(out, participants)
	return out
}
