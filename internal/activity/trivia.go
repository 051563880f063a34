package activity

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// TriviaPayload is the canonical payload for one trivia round. The correct
// option index is never marshalled, so broadcasting the payload to clients
// cannot leak the answer.
type TriviaPayload struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	TimeLimitMs int64    `json:"time_limit_ms"`

	CorrectOption int `json:"-"`
}

// TriviaSubmission is the client answer shape for trivia rounds.
type TriviaSubmission struct {
	Option int `json:"option"`
}

type triviaQuestion struct {
	prompt  string
	options []string
	correct int
}

var triviaBank = []triviaQuestion{
	{
		prompt:  "Which data structure gives O(1) average lookup by key?",
		options: []string{"linked list", "hash table", "binary heap", "stack"},
		correct: 1,
	},
	{
		prompt:  "What year was the World Wide Web proposed?",
		options: []string{"1983", "1989", "1993", "1999"},
		correct: 1,
	},
	{
		prompt:  "Which planet has the most moons?",
		options: []string{"Earth", "Mars", "Saturn", "Venus"},
		correct: 2,
	},
	{
		prompt:  "What does CPU stand for?",
		options: []string{"central processing unit", "core program utility", "computer primary unit", "control panel unit"},
		correct: 0,
	},
	{
		prompt:  "Which of these is not a Go keyword?",
		options: []string{"defer", "select", "yield", "range"},
		correct: 2,
	},
	{
		prompt:  "How many bits are in one byte?",
		options: []string{"4", "8", "16", "32"},
		correct: 1,
	},
}

type triviaJudge struct {
	rules Rules
}

func (j *triviaJudge) Rules() Rules { return j.rules }

func (j *triviaJudge) Generate(roundIndex int, rng *rand.Rand, prev any) (any, error) {
	q := triviaBank[rng.Intn(len(triviaBank))]
	return &TriviaPayload{
		Prompt:        q.prompt,
		Options:       q.options,
		TimeLimitMs:   j.rules.TimeLimitMs(),
		CorrectOption: q.correct,
	}, nil
}

func (j *triviaJudge) ExpectedSubmitters(roundIndex int, participants []string) []string {
	return allSubmitters(participants)
}

func (j *triviaJudge) Score(payload any, raw json.RawMessage, elapsed time.Duration) (models.Metrics, float64, error) {
	round, ok := payload.(*TriviaPayload)
	if !ok {
		return models.Metrics{}, 0, fmt.Errorf("unexpected payload type %T", payload)
	}
	var sub TriviaSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return models.Metrics{}, 0, fmt.Errorf("decode trivia submission: %w", err)
	}
	if sub.Option < 0 || sub.Option >= len(round.Options) {
		return models.Metrics{}, 0, fmt.Errorf("option %d out of range", sub.Option)
	}
	if sub.Option == round.CorrectOption {
		return models.Metrics{Correct: 1, Progress: 1}, 1, nil
	}
	return models.Metrics{Progress: 1}, 0, nil
}

func (j *triviaJudge) Resolve(payload any, subs map[string]*models.Submission) (map[string]float64, bool) {
	scores := make(map[string]float64, len(subs))
	for userID, sub := range subs {
		scores[userID] = sub.Score
	}
	return scores, false
}
