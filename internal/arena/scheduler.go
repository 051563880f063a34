package arena

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/models"
)

// startRoundLocked generates the round payload, arms the deadline timer,
// and pushes round-started to every connected participant. Caller holds the
// session lock. prev is the resolved payload of the previous round.
func (m *Manager) startRoundLocked(ls *liveSession, index int, prev any) error {
	payload, err := ls.judge.Generate(index, ls.rng, prev)
	if err != nil {
		return fmt.Errorf("generate round payload: %w", err)
	}

	now := m.clock.Now()
	deadline := now.Add(ls.rules.TimeLimit)
	round := &liveRound{
		index:       index,
		payload:     payload,
		startedAt:   now,
		deadlineAt:  deadline,
		expected:    ls.judge.ExpectedSubmitters(index, ls.joinedIDs()),
		submissions: make(map[string]*models.Submission),
		stopTimer:   make(chan struct{}),
	}
	ls.rounds = append(ls.rounds, round)
	ls.session.CurrentRoundIndex = index
	ls.session.RoundDeadlineAt = &deadline

	view, err := round.view()
	if err != nil {
		return fmt.Errorf("render round payload: %w", err)
	}
	m.broadcast(ls, events.TypeRoundStarted, events.RoundStartedPayload{
		RoundIndex: index,
		Payload:    view.Payload,
		StartedAt:  round.startedAt,
		DeadlineAt: round.deadlineAt,
	})

	m.armRoundTimer(ls.session.ID, round)

	log.Info().
		Str("session_id", ls.session.ID.String()).
		Int("round_index", index).
		Time("deadline_at", deadline).
		Msg("round started")
	return nil
}

// armRoundTimer schedules the deadline fire for one round. The goroutine is
// released either by the timer or by stopTimer when the round finalizes
// early; if the timer and a last-moment submission race, the finalize-once
// guard inside handleRoundDeadline resolves it.
func (m *Manager) armRoundTimer(sessionID uuid.UUID, round *liveRound) {
	timer := m.clock.NewTimer(round.deadlineAt.Sub(m.clock.Now()))
	go func() {
		defer timer.Stop()
		select {
		case <-timer.Chan():
			m.handleRoundDeadline(sessionID, round.index)
		case <-round.stopTimer:
		}
	}()
}

// handleRoundDeadline fires at most once per round. It is a no-op when the
// round already finalized via the all-submitted path.
func (m *Manager) handleRoundDeadline(sessionID uuid.UUID, roundIndex int) {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.session.Status != models.StatusRunning {
		return
	}
	if roundIndex >= len(ls.rounds) {
		return
	}
	round := ls.rounds[roundIndex]
	if round.finalized {
		return
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Int("round_index", roundIndex).
		Int("submissions", len(round.submissions)).
		Msg("round deadline fired")
	m.finalizeRoundLocked(ls, round, "deadline")
}
