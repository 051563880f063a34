package activity

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/campuslink/arena/internal/models"
)

func tttMove(t *testing.T, userID string, cell int) *models.Submission {
	t.Helper()
	raw, err := json.Marshal(TicTacToeSubmission{Cell: cell})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return &models.Submission{UserID: userID, Payload: raw}
}

func TestTicTacToeTurnAlternation(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityTicTacToe)
	participants := []string{"alice", "bob"}

	for round := 0; round < 4; round++ {
		got := judge.ExpectedSubmitters(round, participants)
		want := participants[round%2]
		if len(got) != 1 || got[0] != want {
			t.Errorf("round %d: expected submitters = %v, want [%s]", round, got, want)
		}
	}
}

func TestTicTacToeBoardChainsAcrossRounds(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityTicTacToe)
	rng := rand.New(rand.NewSource(1))

	first, err := judge.Generate(0, rng, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	board := first.(*TicTacToePayload)
	if board.MoverSymbol != "X" {
		t.Errorf("round 0 mover = %s, want X", board.MoverSymbol)
	}

	judge.Resolve(board, map[string]*models.Submission{"alice": tttMove(t, "alice", 4)})

	second, err := judge.Generate(1, rng, first)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	next := second.(*TicTacToePayload)
	if next.Board[4] != "X" {
		t.Errorf("round 1 board[4] = %q, want X carried over", next.Board[4])
	}
	if next.MoverSymbol != "O" {
		t.Errorf("round 1 mover = %s, want O", next.MoverSymbol)
	}
}

func TestTicTacToeIllegalMovesRejected(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityTicTacToe)
	round := &TicTacToePayload{MoverSymbol: "X"}
	round.Board[0] = "O"

	cases := []struct {
		name string
		cell int
	}{
		{"occupied cell", 0},
		{"negative cell", -1},
		{"cell out of range", 9},
	}
	for _, tc := range cases {
		raw, _ := json.Marshal(TicTacToeSubmission{Cell: tc.cell})
		if _, _, err := judge.Score(round, raw, time.Second); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	raw, _ := json.Marshal(TicTacToeSubmission{Cell: 5})
	if _, _, err := judge.Score(round, raw, time.Second); err != nil {
		t.Errorf("legal move rejected: %v", err)
	}
}

func TestTicTacToeWinningMoveIsTerminal(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityTicTacToe)
	round := &TicTacToePayload{MoverSymbol: "X"}
	round.Board[0], round.Board[1] = "X", "X"

	scores, terminal := judge.Resolve(round, map[string]*models.Submission{
		"alice": tttMove(t, "alice", 2),
	})
	if !terminal {
		t.Error("completed line must end the session")
	}
	if scores["alice"] != 1 {
		t.Errorf("scores = %v, want alice 1", scores)
	}
}

func TestTicTacToeFullBoardIsTerminalDraw(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityTicTacToe)
	// One move away from a full board with no winning line.
	round := &TicTacToePayload{
		MoverSymbol: "X",
		Board:       [9]string{"X", "O", "X", "X", "O", "O", "O", "X", ""},
	}

	scores, terminal := judge.Resolve(round, map[string]*models.Submission{
		"alice": tttMove(t, "alice", 8),
	})
	if !terminal {
		t.Error("full board must end the session")
	}
	if scores["alice"] != 0 {
		t.Errorf("scores = %v, want alice 0 on a draw", scores)
	}
}

// A missed deadline forfeits the turn without mutating the board.
func TestTicTacToeEmptyRoundForfeitsTurn(t *testing.T) {
	judge, _ := JudgeFor(models.ActivityTicTacToe)
	round := &TicTacToePayload{MoverSymbol: "X"}

	scores, terminal := judge.Resolve(round, map[string]*models.Submission{})
	if terminal {
		t.Error("forfeited turn must not end the session")
	}
	if len(scores) != 0 {
		t.Errorf("scores = %v, want empty", scores)
	}
	for i, cell := range round.Board {
		if cell != "" {
			t.Errorf("board[%d] = %q, want untouched", i, cell)
		}
	}
}
