package activity

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// TicTacToePayload carries the board across rounds; each round is one ply
// by the participant whose turn it is.
type TicTacToePayload struct {
	Board       [9]string `json:"board"`
	MoverSymbol string    `json:"mover_symbol"`
	TimeLimitMs int64     `json:"time_limit_ms"`
}

// TicTacToeSubmission is one move: a cell index into the board.
type TicTacToeSubmission struct {
	Cell int `json:"cell"`
}

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type ticTacToeJudge struct {
	rules Rules
}

func (j *ticTacToeJudge) Rules() Rules { return j.rules }

func (j *ticTacToeJudge) Generate(roundIndex int, rng *rand.Rand, prev any) (any, error) {
	payload := &TicTacToePayload{
		MoverSymbol: symbolFor(roundIndex),
		TimeLimitMs: j.rules.TimeLimitMs(),
	}
	if prevBoard, ok := prev.(*TicTacToePayload); ok {
		payload.Board = prevBoard.Board
	}
	return payload, nil
}

// ExpectedSubmitters alternates turns: even rounds belong to the first
// participant (X), odd rounds to the second (O).
func (j *ticTacToeJudge) ExpectedSubmitters(roundIndex int, participants []string) []string {
	if len(participants) == 0 {
		return nil
	}
	return []string{participants[roundIndex%len(participants)]}
}

// Score rejects illegal moves outright, so the mover may retry until the
// round deadline.
func (j *ticTacToeJudge) Score(payload any, raw json.RawMessage, elapsed time.Duration) (models.Metrics, float64, error) {
	round, ok := payload.(*TicTacToePayload)
	if !ok {
		return models.Metrics{}, 0, fmt.Errorf("unexpected payload type %T", payload)
	}
	var sub TicTacToeSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return models.Metrics{}, 0, fmt.Errorf("decode move: %w", err)
	}
	if sub.Cell < 0 || sub.Cell >= len(round.Board) {
		return models.Metrics{}, 0, fmt.Errorf("cell %d out of range", sub.Cell)
	}
	if round.Board[sub.Cell] != "" {
		return models.Metrics{}, 0, fmt.Errorf("cell %d already taken", sub.Cell)
	}
	return models.Metrics{Progress: 1}, 0, nil
}

// Resolve applies the mover's ply to the board and reports a terminal
// session when a line is completed or the board fills. A missed deadline
// simply forfeits the turn.
func (j *ticTacToeJudge) Resolve(payload any, subs map[string]*models.Submission) (map[string]float64, bool) {
	round, ok := payload.(*TicTacToePayload)
	if !ok {
		return nil, false
	}
	scores := make(map[string]float64, 1)
	for userID, sub := range subs {
		var move TicTacToeSubmission
		if err := json.Unmarshal(sub.Payload, &move); err != nil {
			continue
		}
		if move.Cell < 0 || move.Cell >= len(round.Board) || round.Board[move.Cell] != "" {
			continue
		}
		round.Board[move.Cell] = round.MoverSymbol
		if winningSymbol(round.Board) == round.MoverSymbol {
			scores[userID] = 1
			return scores, true
		}
		scores[userID] = 0
	}
	return scores, boardFull(round.Board)
}

func symbolFor(roundIndex int) string {
	if roundIndex%2 == 0 {
		return "X"
	}
	return "O"
}

func winningSymbol(board [9]string) string {
	for _, line := range tttLines {
		if board[line[0]] != "" && board[line[0]] == board[line[1]] && board[line[1]] == board[line[2]] {
			return board[line[0]]
		}
	}
	return ""
}

func boardFull(board [9]string) bool {
	for _, cell := range board {
		if cell == "" {
			return false
		}
	}
	return true
}
