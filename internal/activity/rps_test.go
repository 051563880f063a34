package activity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/campuslink/arena/internal/models"
)

func rpsSubmission(t *testing.T, userID, choice string) *models.Submission {
	t.Helper()
	raw, err := json.Marshal(RPSSubmission{Choice: choice})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return &models.Submission{UserID: userID, Payload: raw}
}

func TestRPSScoreValidatesChoice(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityRockPaperScissors)

	raw, _ := json.Marshal(RPSSubmission{Choice: "rock"})
	if _, _, err := judge.Score(&RPSPayload{}, raw, time.Second); err != nil {
		t.Errorf("Score(rock): %v", err)
	}

	raw, _ = json.Marshal(RPSSubmission{Choice: "lizard"})
	if _, _, err := judge.Score(&RPSPayload{}, raw, time.Second); err == nil {
		t.Error("expected error for invalid choice")
	}
}

func TestRPSResolveWinner(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityRockPaperScissors)

	subs := map[string]*models.Submission{
		"alice": rpsSubmission(t, "alice", "rock"),
		"bob":   rpsSubmission(t, "bob", "scissors"),
	}
	scores, terminal := judge.Resolve(&RPSPayload{}, subs)
	if terminal {
		t.Error("rps rounds are never terminal")
	}
	if scores["alice"] != 1 || scores["bob"] != 0 {
		t.Errorf("scores = %v, want alice 1 bob 0", scores)
	}
}

func TestRPSResolveTieSplitsPoint(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityRockPaperScissors)

	subs := map[string]*models.Submission{
		"alice": rpsSubmission(t, "alice", "paper"),
		"bob":   rpsSubmission(t, "bob", "paper"),
	}
	scores, _ := judge.Resolve(&RPSPayload{}, subs)
	if scores["alice"] != 0.5 || scores["bob"] != 0.5 {
		t.Errorf("scores = %v, want 0.5 each", scores)
	}
}

// A missing hand at the deadline forfeits the round.
func TestRPSResolveLoneSubmitterTakesPoint(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityRockPaperScissors)

	subs := map[string]*models.Submission{
		"alice": rpsSubmission(t, "alice", "scissors"),
	}
	scores, _ := judge.Resolve(&RPSPayload{}, subs)
	if scores["alice"] != 1 {
		t.Errorf("scores = %v, want alice 1", scores)
	}
}

func TestRPSResolveNoSubmissions(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityRockPaperScissors)

	scores, terminal := judge.Resolve(&RPSPayload{}, map[string]*models.Submission{})
	if terminal {
		t.Error("empty round must not be terminal")
	}
	if len(scores) != 0 {
		t.Errorf("scores = %v, want empty", scores)
	}
}
