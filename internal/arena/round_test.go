package arena

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/arena/internal/activity"
	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/models"
)

func (h *testHarness) currentTypingSample(t *testing.T, sessionID uuid.UUID) string {
	t.Helper()
	snap, err := h.manager.Snapshot(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentRound)

	var payload activity.TypingPayload
	require.NoError(t, json.Unmarshal(snap.CurrentRound.Payload, &payload))
	return payload.SampleText
}

func (h *testHarness) submitTyping(t *testing.T, sessionID uuid.UUID, userID, text string, round int, clientElapsedMs int64) (*models.Submission, error) {
	t.Helper()
	raw, err := json.Marshal(activity.TypingSubmission{TypedText: text})
	require.NoError(t, err)
	return h.manager.Submit(context.Background(), sessionID, userID, round, raw, clientElapsedMs)
}

func (h *testHarness) submitRPS(t *testing.T, sessionID uuid.UUID, userID, choice string, round int, clientElapsedMs int64) error {
	t.Helper()
	raw, err := json.Marshal(activity.RPSSubmission{Choice: choice})
	require.NoError(t, err)
	_, err = h.manager.Submit(context.Background(), sessionID, userID, round, raw, clientElapsedMs)
	return err
}

func (h *testHarness) endedPayload(t *testing.T) events.SessionEndedPayload {
	t.Helper()
	ended := h.broadcaster.ofType(events.TypeSessionEnded)
	require.Len(t, ended, 1, "expected exactly one session.ended event")

	var payload events.SessionEndedPayload
	require.NoError(t, json.Unmarshal(ended[0].Data, &payload))
	return payload
}

// Two participants transcribe the same sample; the faster accurate typist
// wins on the server-observed clock regardless of what the clients report.
func TestTypingDuelAuthoritativeElapsedDecidesWinner(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityTypingDuel, "alice", "bob")
	sample := h.currentTypingSample(t, id)

	h.clock.Advance(8 * time.Second)
	subA, err := h.submitTyping(t, id, "alice", sample, 0, 8000)
	require.NoError(t, err)
	require.Equal(t, int64(8000), subA.ElapsedMs)
	require.InDelta(t, 1.0, subA.Metrics.Accuracy, 1e-9)

	h.clock.Advance(1 * time.Second)
	subB, err := h.submitTyping(t, id, "bob", sample, 0, 9000)
	require.NoError(t, err)
	require.Equal(t, int64(9000), subB.ElapsedMs)
	require.InDelta(t, 1.0, subB.Metrics.Accuracy, 1e-9)

	// Both expected submissions are in; the round finalizes without
	// waiting for the deadline and the session ends.
	status, err := h.manager.SessionStatus(id)
	require.NoError(t, err)
	require.Equal(t, models.StatusEnded, status)

	payload := h.endedPayload(t)
	require.NotNil(t, payload.WinnerUserID)
	require.Equal(t, "alice", *payload.WinnerUserID)
	require.Nil(t, payload.TieBreakWinnerUserID)

	require.Len(t, payload.Results, 2)
	require.Equal(t, "alice", payload.Results[0].UserID)
	require.Equal(t, int64(8000), payload.Results[0].ElapsedMs)
	require.Equal(t, int64(9000), payload.Results[1].ElapsedMs)
	require.Greater(t, payload.Results[0].Score, payload.Results[1].Score)

	// The outcome reaches the archive without holding the session lock.
	select {
	case result := <-h.recorder.ch:
		require.Equal(t, id, result.SessionID)
		require.Equal(t, "alice", *result.WinnerUserID)
	case <-time.After(2 * time.Second):
		t.Fatal("result never archived")
	}

	require.Zero(t, h.antiCheat.count(), "honest clients must not raise suspicion")
}

func TestSubmitRejections(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityTypingDuel, "alice", "bob")
	sample := h.currentTypingSample(t, id)

	_, err := h.submitTyping(t, id, "mallory", sample, 0, 100)
	require.ErrorIs(t, err, ErrNotAParticipant)

	_, err = h.submitTyping(t, id, "alice", sample, 3, 100)
	require.ErrorIs(t, err, ErrRoundMismatch)

	h.clock.Advance(time.Second)
	_, err = h.submitTyping(t, id, "alice", sample, 0, 1000)
	require.NoError(t, err)

	_, err = h.submitTyping(t, id, "alice", sample, 0, 1000)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = h.submitTyping(t, id, "bob", sample, 0, 1000)
	require.NoError(t, err)

	// Session has ended; further submissions bounce.
	_, err = h.submitTyping(t, id, "bob", sample, 0, 1000)
	require.ErrorIs(t, err, ErrSessionClosed)
}

// The client-reported elapsed time is diagnostic only: a divergent value
// flags the participant but never changes the authoritative measurement.
func TestClientClockSkewRaisesSuspicion(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityTypingDuel, "alice", "bob")
	sample := h.currentTypingSample(t, id)

	h.clock.Advance(10 * time.Second)
	sub, err := h.submitTyping(t, id, "alice", sample, 0, 2000) // claims 2s, server saw 10s
	require.NoError(t, err)
	require.Equal(t, int64(10000), sub.ElapsedMs)
	require.Equal(t, 1, h.antiCheat.count())
}

// When the deadline fires with a missing submission, the absent
// participant forfeits and the submitted one wins.
func TestRoundDeadlineForfeitsAbsentParticipant(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityTypingDuel, "alice", "bob")
	sample := h.currentTypingSample(t, id)

	h.clock.Advance(5 * time.Second)
	_, err := h.submitTyping(t, id, "alice", sample, 0, 5000)
	require.NoError(t, err)

	h.clock.Advance(56 * time.Second) // past the 60s deadline

	require.Eventually(t, func() bool {
		status, err := h.manager.SessionStatus(id)
		return err == nil && status == models.StatusEnded
	}, 2*time.Second, 10*time.Millisecond, "deadline never finalized the round")

	payload := h.endedPayload(t)
	require.NotNil(t, payload.WinnerUserID)
	require.Equal(t, "alice", *payload.WinnerUserID)

	for _, r := range payload.Results {
		if r.UserID == "bob" {
			require.Zero(t, r.Score)
			require.Zero(t, r.ElapsedMs)
		}
	}
}

// Equal cumulative scores resolve by lower total elapsed time: a
// tie-break win, reported distinctly from an outright win.
func TestEqualScoresResolveByElapsedTime(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityRockPaperScissors, "alice", "bob")

	for round := 0; round < 3; round++ {
		h.clock.Advance(1 * time.Second)
		require.NoError(t, h.submitRPS(t, id, "alice", "rock", round, 1000))
		h.clock.Advance(2 * time.Second)
		require.NoError(t, h.submitRPS(t, id, "bob", "rock", round, 3000))
	}

	status, _ := h.manager.SessionStatus(id)
	require.Equal(t, models.StatusEnded, status)

	payload := h.endedPayload(t)
	require.Nil(t, payload.WinnerUserID, "a tie-break is not an outright win")
	require.NotNil(t, payload.TieBreakWinnerUserID)
	require.Equal(t, "alice", *payload.TieBreakWinnerUserID)
}

func TestEqualScoresAndElapsedDeclareDraw(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityRockPaperScissors, "alice", "bob")

	for round := 0; round < 3; round++ {
		h.clock.Advance(1 * time.Second)
		require.NoError(t, h.submitRPS(t, id, "alice", "paper", round, 1000))
		require.NoError(t, h.submitRPS(t, id, "bob", "paper", round, 1000))
	}

	payload := h.endedPayload(t)
	require.Nil(t, payload.WinnerUserID)
	require.Nil(t, payload.TieBreakWinnerUserID)
}

func TestTicTacToeTurnEnforcementAndEarlyTermination(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityTicTacToe, "alice", "bob")

	move := func(userID string, round, cell int) error {
		raw, err := json.Marshal(activity.TicTacToeSubmission{Cell: cell})
		require.NoError(t, err)
		_, err = h.manager.Submit(context.Background(), id, userID, round, raw, 500)
		return err
	}

	// bob moving out of turn on round 0.
	require.ErrorIs(t, move("bob", 0, 0), ErrNotYourTurn)

	// alice completes the top row by round 4; the 9-round schedule ends
	// early.
	require.NoError(t, move("alice", 0, 0))
	require.NoError(t, move("bob", 1, 3))
	require.NoError(t, move("alice", 2, 1))
	require.NoError(t, move("bob", 3, 4))
	require.NoError(t, move("alice", 4, 2))

	status, _ := h.manager.SessionStatus(id)
	require.Equal(t, models.StatusEnded, status)

	payload := h.endedPayload(t)
	require.NotNil(t, payload.WinnerUserID)
	require.Equal(t, "alice", *payload.WinnerUserID)
}

// The deadline timer and a last-moment submission may race; the
// finalize-once guard must let exactly one of them resolve the round.
func TestDeadlineSubmissionRaceFinalizesOnce(t *testing.T) {
	h := newTestHarness(t)
	id := h.startSession(t, models.ActivityTypingDuel, "alice", "bob")
	sample := h.currentTypingSample(t, id)

	h.clock.Advance(10 * time.Second)
	_, err := h.submitTyping(t, id, "alice", sample, 0, 10000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.clock.Advance(50 * time.Second) // fires the deadline
	}()
	go func() {
		defer wg.Done()
		// Either accepted just in time or rejected after finalize; both
		// are legal, double finalization is not.
		h.submitTyping(t, id, "bob", sample, 0, 60000)
	}()
	wg.Wait()

	require.Eventually(t, func() bool {
		status, err := h.manager.SessionStatus(id)
		return err == nil && status == models.StatusEnded
	}, 2*time.Second, 10*time.Millisecond)

	require.Len(t, h.broadcaster.ofType(events.TypeSessionEnded), 1)
	require.Len(t, h.broadcaster.ofType(events.TypeRoundStarted), 1, "typing duel has exactly one round")
}
