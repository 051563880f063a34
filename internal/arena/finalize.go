package arena

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/models"
	"github.com/campuslink/arena/internal/observability"
)

// finalizeRoundLocked is the single authoritative "finalize once" path for
// a round. Caller holds the session lock and has checked round.finalized;
// the flag flips here before anything else so the deadline timer and the
// last-submission path can never both resolve the same round.
func (m *Manager) finalizeRoundLocked(ls *liveSession, round *liveRound, reason string) {
	round.finalized = true
	close(round.stopTimer)

	roundScores, terminal := ls.judge.Resolve(round.payload, round.submissions)
	for userID, score := range roundScores {
		ls.scores[userID] += score
	}
	for userID, sub := range round.submissions {
		ls.elapsed[userID] += sub.ElapsedMs
		ls.metrics[userID] = sub.Metrics
	}
	observability.RecordRoundFinalized(reason)

	log.Info().
		Str("session_id", ls.session.ID.String()).
		Int("round_index", round.index).
		Str("reason", reason).
		Bool("terminal", terminal).
		Msg("round finalized")

	if terminal || round.index+1 >= ls.rules.Rounds {
		m.endSessionLocked(ls)
		return
	}
	if err := m.startRoundLocked(ls, round.index+1, round.payload); err != nil {
		log.Error().Err(err).
			Str("session_id", ls.session.ID.String()).
			Int("round_index", round.index+1).
			Msg("failed to start next round")
		m.cancelSessionLocked(ls, "round scheduling failure")
	}
}

// endSessionLocked computes the deterministic session outcome and emits the
// terminal event. Winner resolution: highest cumulative score wins; an
// exact score tie goes to the lower authoritative elapsed time; equal
// elapsed times declare a draw.
func (m *Manager) endSessionLocked(ls *liveSession) {
	now := m.clock.Now()
	ls.session.Status = models.StatusEnded
	ls.session.EndedAt = &now
	ls.session.RoundDeadlineAt = nil

	results := make([]events.ParticipantResult, 0, len(ls.participants))
	for _, p := range ls.participants {
		if !p.Joined() {
			continue
		}
		score := ls.scores[p.UserID]
		p.Score = &score
		p.TotalElapsedMs = ls.elapsed[p.UserID]
		results = append(results, events.ParticipantResult{
			UserID:    p.UserID,
			Metrics:   ls.metrics[p.UserID],
			Score:     score,
			ElapsedMs: ls.elapsed[p.UserID],
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return authoritativeElapsed(ls, results[i].UserID) < authoritativeElapsed(ls, results[j].UserID)
	})

	winner, tieBreakWinner := resolveWinner(ls, results)

	payload := events.SessionEndedPayload{
		WinnerUserID:         winner,
		TieBreakWinnerUserID: tieBreakWinner,
		Results:              results,
	}
	m.broadcast(ls, events.TypeSessionEnded, payload)
	observability.RecordSessionEnded("ended")

	log.Info().
		Str("session_id", ls.session.ID.String()).
		Str("activity_key", string(ls.session.ActivityKey)).
		Msg("session ended")

	if m.recorder != nil {
		result := Result{
			SessionID:            ls.session.ID,
			ActivityKey:          ls.session.ActivityKey,
			CampusID:             ls.session.CampusID,
			EndedAt:              now,
			WinnerUserID:         winner,
			TieBreakWinnerUserID: tieBreakWinner,
			Results:              results,
		}
		// Archival must not block the session lock or depend on the
		// caller's context.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.archiveTimeout)
			defer cancel()
			if err := m.recorder.RecordResult(ctx, result); err != nil {
				log.Error().Err(err).
					Str("session_id", result.SessionID.String()).
					Msg("failed to archive session result")
			}
		}()
	}
}

// resolveWinner implements the tie-break law over sorted results.
func resolveWinner(ls *liveSession, results []events.ParticipantResult) (winner, tieBreakWinner *string) {
	if len(results) == 0 {
		return nil, nil
	}
	top := results[0]
	tied := []events.ParticipantResult{top}
	for _, r := range results[1:] {
		if r.Score == top.Score {
			tied = append(tied, r)
		}
	}
	if len(tied) == 1 {
		userID := top.UserID
		return &userID, nil
	}

	best := tied[0]
	bestElapsed := authoritativeElapsed(ls, best.UserID)
	uniqueBest := true
	for _, r := range tied[1:] {
		e := authoritativeElapsed(ls, r.UserID)
		if e < bestElapsed {
			best, bestElapsed, uniqueBest = r, e, true
		} else if e == bestElapsed {
			uniqueBest = false
		}
	}
	if !uniqueBest {
		return nil, nil // declared draw
	}
	userID := best.UserID
	return nil, &userID
}

// authoritativeElapsed treats a participant with no accepted submissions as
// infinitely slow so they can never win a tie-break by default.
func authoritativeElapsed(ls *liveSession, userID string) int64 {
	if _, ok := ls.elapsed[userID]; !ok {
		return math.MaxInt64
	}
	return ls.elapsed[userID]
}

// cancelSessionLocked aborts a session, releasing any pending round timer.
func (m *Manager) cancelSessionLocked(ls *liveSession, reason string) {
	if !ls.session.Status.CanTransitionTo(models.StatusCancelled) {
		return
	}
	now := m.clock.Now()
	ls.session.Status = models.StatusCancelled
	ls.session.EndedAt = &now
	ls.session.RoundDeadlineAt = nil

	if round := ls.currentRound(); round != nil && !round.finalized {
		round.finalized = true
		close(round.stopTimer)
	}

	m.broadcast(ls, events.TypeSessionCancelled, events.SessionCancelledPayload{Reason: reason})
	observability.RecordSessionEnded("cancelled")

	log.Info().
		Str("session_id", ls.session.ID.String()).
		Str("reason", reason).
		Msg("session cancelled")
}
