package invites

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/arena/internal/models"
)

type fakeDirectory struct {
	mu       sync.Mutex
	sessions []models.SessionSummary
	err      error
	calls    int
}

func (d *fakeDirectory) LobbySessions(ctx context.Context) ([]models.SessionSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make([]models.SessionSummary, len(d.sessions))
	copy(out, d.sessions)
	return out, nil
}

func (d *fakeDirectory) set(sessions []models.SessionSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = sessions
}

func (d *fakeDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type pollerFixture struct {
	poller    *Poller
	directory *fakeDirectory
	clock     *clockwork.FakeClock
	store     *MemoryStore

	mu       sync.Mutex
	surfaced []Invite
	cleared  []uuid.UUID
}

func newPollerFixture(t *testing.T, viewer string) *pollerFixture {
	t.Helper()
	f := &pollerFixture{
		directory: &fakeDirectory{},
		clock:     clockwork.NewFakeClock(),
		store:     NewMemoryStore(),
	}
	f.poller = NewPoller(Config{
		ViewerUserID: viewer,
		Directory:    f.directory,
		Handled:      f.store,
		Clock:        f.clock,
		OnInvite: func(inv Invite) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.surfaced = append(f.surfaced, inv)
		},
		OnCleared: func(id uuid.UUID) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.cleared = append(f.cleared, id)
		},
	})
	return f
}

func (f *pollerFixture) surfacedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.surfaced)
}

func (f *pollerFixture) lobbySession(creator string, participants []string, age time.Duration) models.SessionSummary {
	return models.SessionSummary{
		ID:             uuid.New(),
		ActivityKey:    models.ActivityTypingDuel,
		CreatorUserID:  creator,
		Status:         models.StatusLobby,
		CreatedAt:      f.clock.Now().Add(-age),
		ParticipantIDs: participants,
	}
}

func TestPollerSurfacesPendingInvite(t *testing.T) {
	f := newPollerFixture(t, "bob")
	s := f.lobbySession("alice", []string{"alice", "bob"}, time.Minute)
	f.directory.set([]models.SessionSummary{s})

	require.NoError(t, f.poller.Poll(context.Background()))

	active := f.poller.Active()
	require.NotNil(t, active)
	require.Equal(t, s.ID, active.SessionID)
	require.Equal(t, "alice", active.OpponentUserID)
	require.Equal(t, 1, f.surfacedCount())

	// Re-polling the same state surfaces nothing new.
	require.NoError(t, f.poller.Poll(context.Background()))
	require.Equal(t, 1, f.surfacedCount())
}

func TestPollerIgnoresNonCandidates(t *testing.T) {
	f := newPollerFixture(t, "bob")

	own := f.lobbySession("bob", []string{"bob", "alice"}, time.Minute)
	notInvited := f.lobbySession("alice", []string{"alice", "carol"}, time.Minute)
	noOpponent := f.lobbySession("alice", []string{"bob"}, time.Minute)
	running := f.lobbySession("alice", []string{"alice", "bob"}, time.Minute)
	running.Status = models.StatusRunning

	f.directory.set([]models.SessionSummary{own, notInvited, noOpponent, running})
	require.NoError(t, f.poller.Poll(context.Background()))
	require.Nil(t, f.poller.Active())
	require.Zero(t, f.surfacedCount())
}

func TestPollerStalenessBoundary(t *testing.T) {
	f := newPollerFixture(t, "bob")

	fresh := f.lobbySession("alice", []string{"alice", "bob"}, 29*time.Minute)
	f.directory.set([]models.SessionSummary{fresh})
	require.NoError(t, f.poller.Poll(context.Background()))
	require.NotNil(t, f.poller.Active(), "a 29-minute-old lobby is still actionable")

	require.NoError(t, f.poller.Acknowledge(fresh.ID))

	stale := f.lobbySession("carol", []string{"carol", "bob"}, 31*time.Minute)
	f.directory.set([]models.SessionSummary{stale})
	require.NoError(t, f.poller.Poll(context.Background()))
	require.Nil(t, f.poller.Active(), "a 31-minute-old lobby is stale")
}

func TestAcknowledgedInviteNeverResurfaces(t *testing.T) {
	f := newPollerFixture(t, "bob")
	s := f.lobbySession("alice", []string{"alice", "bob"}, time.Minute)
	f.directory.set([]models.SessionSummary{s})

	require.NoError(t, f.poller.Poll(context.Background()))
	require.NotNil(t, f.poller.Active())

	require.NoError(t, f.poller.Acknowledge(s.ID))
	require.Nil(t, f.poller.Active())

	require.NoError(t, f.poller.Poll(context.Background()))
	require.Nil(t, f.poller.Active())
	require.Equal(t, 1, f.surfacedCount())
}

func TestInviteClearedWhenNoLongerCandidate(t *testing.T) {
	f := newPollerFixture(t, "bob")
	first := f.lobbySession("alice", []string{"alice", "bob"}, time.Minute)
	second := f.lobbySession("carol", []string{"carol", "bob"}, time.Minute)
	f.directory.set([]models.SessionSummary{first, second})

	require.NoError(t, f.poller.Poll(context.Background()))
	require.Equal(t, first.ID, f.poller.Active().SessionID)

	// The first session starts without bob; the second surfaces next poll.
	f.directory.set([]models.SessionSummary{second})
	require.NoError(t, f.poller.Poll(context.Background()))

	require.Equal(t, second.ID, f.poller.Active().SessionID)
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Equal(t, []uuid.UUID{first.ID}, f.cleared)
	require.Equal(t, 2, len(f.surfaced))
}

// A 404 from the directory means the deployment has no discovery
// endpoint; polling stops for good instead of hammering it.
func TestEndpointUnavailableStopsPollingPermanently(t *testing.T) {
	f := newPollerFixture(t, "bob")
	f.directory.err = ErrEndpointUnavailable

	err := f.poller.Poll(context.Background())
	require.ErrorIs(t, err, ErrEndpointUnavailable)
	calls := f.directory.callCount()

	// Subsequent polls short-circuit without touching the directory.
	err = f.poller.Poll(context.Background())
	require.ErrorIs(t, err, ErrEndpointUnavailable)
	require.Equal(t, calls, f.directory.callCount())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newPollerFixture(t, "bob")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- f.poller.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
