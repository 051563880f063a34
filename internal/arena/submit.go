package arena

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/models"
	"github.com/campuslink/arena/internal/observability"
)

// Submit validates and records a participant's final answer for a round,
// computing server-side metrics. The authoritative elapsed time is derived
// from server receipt relative to round start; the client-reported value is
// only checked for anomalies. If this is the last expected submission the
// round finalizes immediately.
func (m *Manager) Submit(ctx context.Context, sessionID uuid.UUID, userID string, roundIndex int, payload json.RawMessage, clientElapsedMs int64) (*models.Submission, error) {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.session.Status != models.StatusRunning {
		return nil, fmt.Errorf("%w: session is %s", ErrSessionClosed, ls.session.Status)
	}
	p := ls.participant(userID)
	if p == nil || !p.Joined() {
		return nil, ErrNotAParticipant
	}
	round := ls.currentRound()
	if round == nil || roundIndex != round.index || round.finalized {
		return nil, fmt.Errorf("%w: got round %d, current round %d", ErrRoundMismatch, roundIndex, ls.session.CurrentRoundIndex)
	}
	if !contains(round.expected, userID) {
		return nil, ErrNotYourTurn
	}
	if _, dup := round.submissions[userID]; dup {
		return nil, ErrAlreadySubmitted
	}

	now := m.clock.Now()
	elapsed := now.Sub(round.startedAt)
	metrics, score, err := ls.judge.Score(round.payload, payload, elapsed)
	if err != nil {
		return nil, fmt.Errorf("score submission: %w", err)
	}

	elapsedMs := elapsed.Milliseconds()
	if skew := clientElapsedMs - elapsedMs; skew > m.skewToleranceMs || skew < -m.skewToleranceMs {
		if m.antiCheat != nil {
			m.antiCheat.ReportSuspicion(sessionID, userID, "client elapsed time diverges from server observation")
		}
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("user_id", userID).
			Int64("client_elapsed_ms", clientElapsedMs).
			Int64("server_elapsed_ms", elapsedMs).
			Msg("client-reported elapsed time out of tolerance")
	}

	sub := &models.Submission{
		UserID:           userID,
		RoundIndex:       roundIndex,
		Payload:          payload,
		ClientElapsedMs:  clientElapsedMs,
		ServerReceivedAt: now,
		ElapsedMs:        elapsedMs,
		Metrics:          metrics,
		Score:            score,
	}
	round.submissions[userID] = sub
	observability.RecordSubmission(string(ls.session.ActivityKey))

	log.Info().
		Str("session_id", sessionID.String()).
		Str("user_id", userID).
		Int("round_index", roundIndex).
		Int64("elapsed_ms", elapsedMs).
		Msg("submission accepted")

	if m.allExpectedSubmitted(round) {
		m.finalizeRoundLocked(ls, round, "all-submitted")
	}

	out := *sub
	return &out, nil
}

func (m *Manager) allExpectedSubmitted(round *liveRound) bool {
	for _, userID := range round.expected {
		if _, ok := round.submissions[userID]; !ok {
			return false
		}
	}
	return true
}

func contains(ids []string, userID string) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}
