package activity

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// TypingPayload is the canonical round payload for typing activities.
type TypingPayload struct {
	SampleText  string `json:"sample_text"`
	TimeLimitMs int64  `json:"time_limit_ms"`
}

// TypingSubmission is the client answer shape for typing activities.
type TypingSubmission struct {
	TypedText string `json:"typed_text"`
}

var sampleTexts = []string{
	"the quick brown fox jumps over the lazy dog",
	"pack my box with five dozen liquor jugs",
	"sphinx of black quartz judge my vow",
	"how vexingly quick daft zebras jump",
	"the five boxing wizards jump quickly",
	"jackdaws love my big sphinx of quartz",
}

type typingJudge struct {
	rules Rules
}

func (j *typingJudge) Rules() Rules { return j.rules }

func (j *typingJudge) Generate(roundIndex int, rng *rand.Rand, prev any) (any, error) {
	return &TypingPayload{
		SampleText:  sampleTexts[rng.Intn(len(sampleTexts))],
		TimeLimitMs: j.rules.TimeLimitMs(),
	}, nil
}

func (j *typingJudge) ExpectedSubmitters(roundIndex int, participants []string) []string {
	return allSubmitters(participants)
}

func (j *typingJudge) Score(payload any, raw json.RawMessage, elapsed time.Duration) (models.Metrics, float64, error) {
	round, ok := payload.(*TypingPayload)
	if !ok {
		return models.Metrics{}, 0, fmt.Errorf("unexpected payload type %T", payload)
	}
	var sub TypingSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return models.Metrics{}, 0, fmt.Errorf("decode typing submission: %w", err)
	}
	metrics := typingMetrics(round.SampleText, sub.TypedText, elapsed)
	return metrics, metrics.WPM * metrics.Accuracy, nil
}

func (j *typingJudge) Resolve(payload any, subs map[string]*models.Submission) (map[string]float64, bool) {
	scores := make(map[string]float64, len(subs))
	for userID, sub := range subs {
		scores[userID] = sub.Score
	}
	return scores, false
}

// typingMetrics derives wpm, accuracy, and progress server-side from the
// typed text against the canonical sample. elapsed must be the
// server-observed duration, never the client-reported one.
func typingMetrics(sample, typed string, elapsed time.Duration) models.Metrics {
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		minutes = 1.0 / 60000 // clamp to one millisecond
	}

	matching := 0
	for i := 0; i < len(typed) && i < len(sample); i++ {
		if typed[i] == sample[i] {
			matching++
		}
	}

	accuracy := 0.0
	if len(sample) > 0 {
		accuracy = float64(matching) / float64(len(sample))
	}
	progress := 0.0
	if len(sample) > 0 {
		progress = float64(len(typed)) / float64(len(sample))
		if progress > 1 {
			progress = 1
		}
	}

	return models.Metrics{
		WPM:      (float64(len(typed)) / 5.0) / minutes,
		Accuracy: accuracy,
		Progress: progress,
	}
}

// StoryRelayPayload prompts each participant to extend a running story.
type StoryRelayPayload struct {
	Prompt      string `json:"prompt"`
	TimeLimitMs int64  `json:"time_limit_ms"`
}

var storyPrompts = []string{
	"It was the first day of finals week when the campus lights went out.",
	"Nobody believed the library basement had a fourth sub-level.",
	"The dining hall special that day changed everything.",
}

type storyRelayJudge struct {
	rules Rules
}

func (j *storyRelayJudge) Rules() Rules { return j.rules }

func (j *storyRelayJudge) Generate(roundIndex int, rng *rand.Rand, prev any) (any, error) {
	return &StoryRelayPayload{
		Prompt:      storyPrompts[rng.Intn(len(storyPrompts))],
		TimeLimitMs: j.rules.TimeLimitMs(),
	}, nil
}

func (j *storyRelayJudge) ExpectedSubmitters(roundIndex int, participants []string) []string {
	return allSubmitters(participants)
}

// Score for story relay has no canonical sample, so accuracy is not
// meaningful; raw typing speed is the score.
func (j *storyRelayJudge) Score(payload any, raw json.RawMessage, elapsed time.Duration) (models.Metrics, float64, error) {
	var sub TypingSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return models.Metrics{}, 0, fmt.Errorf("decode story submission: %w", err)
	}
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		minutes = 1.0 / 60000
	}
	progress := 0.0
	if strings.TrimSpace(sub.TypedText) != "" {
		progress = 1
	}
	m := models.Metrics{
		WPM:      (float64(len(sub.TypedText)) / 5.0) / minutes,
		Accuracy: 1,
		Progress: progress,
	}
	return m, m.WPM, nil
}

func (j *storyRelayJudge) Resolve(payload any, subs map[string]*models.Submission) (map[string]float64, bool) {
	scores := make(map[string]float64, len(subs))
	for userID, sub := range subs {
		scores[userID] = sub.Score
	}
	return scores, false
}
