package activity

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// RPSPayload is the (trivial) canonical payload for a rock-paper-scissors
// round.
type RPSPayload struct {
	RoundIndex  int   `json:"round_index"`
	TimeLimitMs int64 `json:"time_limit_ms"`
}

// RPSSubmission is the client answer shape.
type RPSSubmission struct {
	Choice string `json:"choice"`
}

var rpsBeats = map[string]string{
	"rock":     "scissors",
	"paper":    "rock",
	"scissors": "paper",
}

type rpsJudge struct {
	rules Rules
}

func (j *rpsJudge) Rules() Rules { return j.rules }

func (j *rpsJudge) Generate(roundIndex int, rng *rand.Rand, prev any) (any, error) {
	return &RPSPayload{RoundIndex: roundIndex, TimeLimitMs: j.rules.TimeLimitMs()}, nil
}

func (j *rpsJudge) ExpectedSubmitters(roundIndex int, participants []string) []string {
	return allSubmitters(participants)
}

// Score only validates the choice; the round outcome needs both hands and
// is settled in Resolve.
func (j *rpsJudge) Score(payload any, raw json.RawMessage, elapsed time.Duration) (models.Metrics, float64, error) {
	var sub RPSSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return models.Metrics{}, 0, fmt.Errorf("decode rps submission: %w", err)
	}
	if _, ok := rpsBeats[sub.Choice]; !ok {
		return models.Metrics{}, 0, fmt.Errorf("invalid choice %q", sub.Choice)
	}
	return models.Metrics{Progress: 1}, 0, nil
}

func (j *rpsJudge) Resolve(payload any, subs map[string]*models.Submission) (map[string]float64, bool) {
	scores := make(map[string]float64, len(subs))
	choices := make(map[string]string, len(subs))
	for userID, sub := range subs {
		var s RPSSubmission
		if err := json.Unmarshal(sub.Payload, &s); err != nil {
			continue
		}
		choices[userID] = s.Choice
		scores[userID] = 0
	}

	// A missing hand (deadline elapsed without a submission) forfeits the
	// round; a lone submitter takes the point.
	if len(choices) == 1 {
		for userID := range choices {
			scores[userID] = 1
		}
		return scores, false
	}
	if len(choices) != 2 {
		return scores, false
	}

	users := make([]string, 0, 2)
	for userID := range choices {
		users = append(users, userID)
	}
	a, b := users[0], users[1]
	switch {
	case choices[a] == choices[b]:
		scores[a], scores[b] = 0.5, 0.5
	case rpsBeats[choices[a]] == choices[b]:
		scores[a] = 1
	default:
		scores[b] = 1
	}
	return scores, false
}
