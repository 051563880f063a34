package activity

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/campuslink/arena/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTypingMetricsPerfectTranscription(t *testing.T) {
	sample := "the quick brown fox jumps over the lazy dog"
	m := typingMetrics(sample, sample, 8*time.Second)

	// 43 chars / 5 per word, over 8 seconds.
	wantWPM := (43.0 / 5.0) / (8.0 / 60.0)
	if !almostEqual(m.WPM, wantWPM) {
		t.Errorf("WPM = %f, want %f", m.WPM, wantWPM)
	}
	if !almostEqual(m.Accuracy, 1.0) {
		t.Errorf("Accuracy = %f, want 1.0", m.Accuracy)
	}
	if !almostEqual(m.Progress, 1.0) {
		t.Errorf("Progress = %f, want 1.0", m.Progress)
	}
}

func TestTypingMetricsPartialTranscription(t *testing.T) {
	sample := "abcdefghij"
	m := typingMetrics(sample, "abcde", 5*time.Second)

	if !almostEqual(m.Accuracy, 0.5) {
		t.Errorf("Accuracy = %f, want 0.5", m.Accuracy)
	}
	if !almostEqual(m.Progress, 0.5) {
		t.Errorf("Progress = %f, want 0.5", m.Progress)
	}
}

func TestTypingMetricsMismatchedCharacters(t *testing.T) {
	// Positional comparison: every character is wrong.
	m := typingMetrics("aaaa", "bbbb", time.Second)
	if !almostEqual(m.Accuracy, 0) {
		t.Errorf("Accuracy = %f, want 0", m.Accuracy)
	}
	if !almostEqual(m.Progress, 1.0) {
		t.Errorf("Progress = %f, want 1.0", m.Progress)
	}
}

func TestTypingMetricsOvertypedClampsProgress(t *testing.T) {
	m := typingMetrics("ab", "abcdef", time.Second)
	if !almostEqual(m.Progress, 1.0) {
		t.Errorf("Progress = %f, want clamp to 1.0", m.Progress)
	}
}

func TestTypingMetricsZeroElapsedDoesNotDivideByZero(t *testing.T) {
	m := typingMetrics("abc", "abc", 0)
	if math.IsInf(m.WPM, 0) || math.IsNaN(m.WPM) {
		t.Errorf("WPM = %f, want finite", m.WPM)
	}
}

func TestTypingJudgeScoreIsWPMTimesAccuracy(t *testing.T) {
	judge, err := JudgeFor(models.ActivityTypingDuel)
	if err != nil {
		t.Fatalf("JudgeFor: %v", err)
	}
	payload, err := judge.Generate(0, rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	round := payload.(*TypingPayload)
	if round.SampleText == "" {
		t.Fatal("Generate produced empty sample text")
	}
	if round.TimeLimitMs != 60000 {
		t.Errorf("TimeLimitMs = %d, want 60000", round.TimeLimitMs)
	}

	raw, _ := json.Marshal(TypingSubmission{TypedText: round.SampleText})
	metrics, score, err := judge.Score(payload, raw, 10*time.Second)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !almostEqual(score, metrics.WPM*metrics.Accuracy) {
		t.Errorf("score = %f, want WPM*Accuracy = %f", score, metrics.WPM*metrics.Accuracy)
	}
}

func TestTypingJudgeRejectsMalformedSubmission(t *testing.T) {
	judge, _ := JudgeFor(models.ActivitySpeedTyping)
	payload, _ := judge.Generate(0, rand.New(rand.NewSource(1)), nil)

	if _, _, err := judge.Score(payload, json.RawMessage(`{not json`), time.Second); err == nil {
		t.Error("expected error for malformed submission")
	}
}

func TestStoryRelayScoreIgnoresAccuracy(t *testing.T) {
	judge, err := JudgeFor(models.ActivityStoryRelay)
	if err != nil {
		t.Fatalf("JudgeFor: %v", err)
	}
	payload, err := judge.Generate(0, rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if payload.(*StoryRelayPayload).Prompt == "" {
		t.Fatal("Generate produced empty prompt")
	}

	raw, _ := json.Marshal(TypingSubmission{TypedText: "and then the lights came back on"})
	metrics, score, err := judge.Score(payload, raw, 30*time.Second)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !almostEqual(metrics.Accuracy, 1.0) {
		t.Errorf("Accuracy = %f, want 1.0 for free-form text", metrics.Accuracy)
	}
	if !almostEqual(score, metrics.WPM) {
		t.Errorf("score = %f, want raw WPM %f", score, metrics.WPM)
	}
}

func TestStoryRelayEmptySubmissionHasNoProgress(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityStoryRelay)
	payload, _ := judge.Generate(0, rand.New(rand.NewSource(1)), nil)

	raw, _ := json.Marshal(TypingSubmission{TypedText: "   "})
	metrics, _, err := judge.Score(payload, raw, time.Second)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if metrics.Progress != 0 {
		t.Errorf("Progress = %f, want 0 for whitespace-only text", metrics.Progress)
	}
}
