package arena

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/activity"
	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/models"
	"github.com/campuslink/arena/internal/observability"
)

// Broadcaster delivers engine events to connected participants. Broadcast
// is called while the session lock is held and must never block; transports
// buffer per connection and drop slow consumers instead of stalling the
// session.
type Broadcaster interface {
	Broadcast(sessionID uuid.UUID, event *events.Event)
}

// AntiCheat is what the engine needs from the telemetry collector: advisory
// flags for snapshots and a sink for anomaly signals observed during
// submission (e.g. client clock skew).
type AntiCheat interface {
	Flags(sessionID uuid.UUID, userID string) models.AntiCheatFlags
	ReportSuspicion(sessionID uuid.UUID, userID string, reason string)
}

// Result is the terminal outcome handed to the archival layer.
type Result struct {
	SessionID            uuid.UUID
	ActivityKey          models.ActivityKey
	CampusID             string
	EndedAt              time.Time
	WinnerUserID         *string
	TieBreakWinnerUserID *string
	Results              []events.ParticipantResult
}

// ResultRecorder persists ended-session results for history/leaderboards.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result Result) error
}

// Config wires the manager's collaborators. Zero-value fields get safe
// defaults from NewManager.
type Config struct {
	Clock           clockwork.Clock
	Broadcaster     Broadcaster
	Recorder        ResultRecorder
	AntiCheat       AntiCheat
	StaleAfter      time.Duration // lobby sessions older than this are never offered as invites
	SkewToleranceMs int64         // allowed gap between client-reported and authoritative elapsed
	ArchiveTimeout  time.Duration
	PruneInterval   time.Duration
}

// Manager is the session lifecycle manager: the top-level state machine
// owning session and participant records and driving the round scheduler.
// The registry map is guarded by mu; each session serializes its own
// mutations on its liveSession mutex.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	clock           clockwork.Clock
	broadcaster     Broadcaster
	recorder        ResultRecorder
	antiCheat       AntiCheat
	staleAfter      time.Duration
	skewToleranceMs int64
	archiveTimeout  time.Duration
	pruneInterval   time.Duration
}

// NewManager creates a session lifecycle manager.
func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.SkewToleranceMs <= 0 {
		cfg.SkewToleranceMs = 2000
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 5 * time.Second
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = time.Minute
	}
	return &Manager{
		sessions:        make(map[uuid.UUID]*liveSession),
		clock:           cfg.Clock,
		broadcaster:     cfg.Broadcaster,
		recorder:        cfg.Recorder,
		antiCheat:       cfg.AntiCheat,
		staleAfter:      cfg.StaleAfter,
		skewToleranceMs: cfg.SkewToleranceMs,
		archiveTimeout:  cfg.ArchiveTimeout,
		pruneInterval:   cfg.PruneInterval,
	}
}

// CreateSession registers a new lobby session. The participant set must
// include the creator and satisfy the activity's cardinality; the creator
// joins immediately, everyone else is invited.
func (m *Manager) CreateSession(ctx context.Context, key models.ActivityKey, creatorUserID string, participantUserIDs []string, campusID string) (uuid.UUID, error) {
	judge, err := activity.JudgeFor(key)
	if err != nil {
		return uuid.Nil, err
	}
	rules := judge.Rules()

	seen := make(map[string]bool, len(participantUserIDs))
	creatorIncluded := false
	for _, id := range participantUserIDs {
		if id == "" || seen[id] {
			return uuid.Nil, fmt.Errorf("%w: duplicate or empty user id", ErrInvalidParticipantSet)
		}
		seen[id] = true
		if id == creatorUserID {
			creatorIncluded = true
		}
	}
	if !creatorIncluded {
		return uuid.Nil, fmt.Errorf("%w: creator must be a participant", ErrInvalidParticipantSet)
	}
	if len(participantUserIDs) < rules.MinParticipants || len(participantUserIDs) > rules.MaxParticipants {
		return uuid.Nil, fmt.Errorf("%w: %s requires %d-%d participants, got %d",
			ErrInvalidParticipantSet, key, rules.MinParticipants, rules.MaxParticipants, len(participantUserIDs))
	}

	now := m.clock.Now()
	ls := &liveSession{
		session: models.ActivitySession{
			ID:            uuid.New(),
			ActivityKey:   key,
			CreatorUserID: creatorUserID,
			CampusID:      campusID,
			Status:        models.StatusLobby,
			CreatedAt:     now,
		},
		judge:   judge,
		rules:   rules,
		rng:     rand.New(rand.NewSource(now.UnixNano())),
		scores:  make(map[string]float64),
		elapsed: make(map[string]int64),
		metrics: make(map[string]models.Metrics),
	}
	for _, id := range participantUserIDs {
		p := &models.Participant{
			UserID:          id,
			ConnectionState: models.ConnectionDisconnected,
		}
		if id == creatorUserID {
			joined := now
			p.JoinedAt = &joined
		}
		ls.participants = append(ls.participants, p)
	}

	m.mu.Lock()
	m.sessions[ls.session.ID] = ls
	m.mu.Unlock()

	observability.RecordSessionCreated(string(key))
	log.Info().
		Str("session_id", ls.session.ID.String()).
		Str("activity_key", string(key)).
		Str("creator", creatorUserID).
		Int("participants", len(participantUserIDs)).
		Msg("session created")

	return ls.session.ID, nil
}

// JoinSession marks an invited participant as joined. Idempotent; a user
// not on the invite list may still join while the lobby has room.
func (m *Manager) JoinSession(ctx context.Context, sessionID uuid.UUID, userID string) error {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.session.Status != models.StatusLobby {
		return fmt.Errorf("%w: cannot join a %s session", ErrSessionClosed, ls.session.Status)
	}

	p := ls.participant(userID)
	if p == nil {
		if len(ls.participants) >= ls.rules.MaxParticipants {
			return fmt.Errorf("%w: session is full", ErrInvalidParticipantSet)
		}
		p = &models.Participant{UserID: userID, ConnectionState: models.ConnectionDisconnected}
		ls.participants = append(ls.participants, p)
	}
	if p.Joined() {
		return nil // joining twice is a no-op
	}
	joined := m.clock.Now()
	p.JoinedAt = &joined

	m.broadcast(ls, events.TypeParticipantJoin, events.ParticipantJoinedPayload{UserID: userID})
	log.Info().Str("session_id", sessionID.String()).Str("user_id", userID).Msg("participant joined")
	return nil
}

// SetReady toggles a participant's ready state while the session is in the
// lobby.
func (m *Manager) SetReady(ctx context.Context, sessionID uuid.UUID, userID string, ready bool) error {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.session.Status != models.StatusLobby {
		return fmt.Errorf("%w: session is %s", ErrSessionClosed, ls.session.Status)
	}
	p := ls.participant(userID)
	if p == nil || !p.Joined() {
		return ErrNotAParticipant
	}
	p.Ready = ready

	m.broadcast(ls, events.TypeParticipantReady, events.ParticipantReadyPayload{UserID: userID, Ready: ready})
	return nil
}

// StartSession transitions lobby -> running and kicks off round 0. Only the
// creator may request a start, and every participant must be ready.
func (m *Manager) StartSession(ctx context.Context, sessionID uuid.UUID, requestedBy string) error {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.session.Status != models.StatusLobby {
		return fmt.Errorf("%w: session is %s", ErrSessionClosed, ls.session.Status)
	}
	if requestedBy != ls.session.CreatorUserID {
		return ErrNotCreator
	}
	joined := 0
	for _, p := range ls.participants {
		if !p.Joined() || !p.Ready {
			return fmt.Errorf("%w: %s is not ready", ErrNotAllReady, p.UserID)
		}
		joined++
	}
	if joined < ls.rules.MinParticipants {
		return fmt.Errorf("%w: need at least %d joined participants", ErrInvalidParticipantSet, ls.rules.MinParticipants)
	}

	now := m.clock.Now()
	ls.session.Status = models.StatusRunning
	ls.session.StartedAt = &now

	log.Info().
		Str("session_id", sessionID.String()).
		Str("activity_key", string(ls.session.ActivityKey)).
		Msg("session started")

	return m.startRoundLocked(ls, 0, nil)
}

// LeaveSession marks the participant disconnected. A running session that
// drops below the activity minimum is cancelled; a creator abandoning the
// lobby cancels it outright.
func (m *Manager) LeaveSession(ctx context.Context, sessionID uuid.UUID, userID string) error {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	p := ls.participant(userID)
	if p == nil {
		return ErrNotAParticipant
	}
	p.ConnectionState = models.ConnectionDisconnected
	p.Ready = false

	if ls.session.Status.Terminal() {
		return nil
	}
	if ls.session.Status == models.StatusLobby && userID == ls.session.CreatorUserID {
		m.cancelSessionLocked(ls, "creator left the lobby")
		return nil
	}
	if ls.session.Status == models.StatusRunning && ls.activeCount() < ls.rules.MinParticipants {
		m.cancelSessionLocked(ls, "participant loss below activity minimum")
	}
	return nil
}

// MarkConnection records transport-level connect/disconnect for a
// participant. Unlike LeaveSession this never cancels: a dropped socket is
// expected to reconnect and recover via Snapshot.
func (m *Manager) MarkConnection(sessionID uuid.UUID, userID string, connected bool) {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	p := ls.participant(userID)
	if p == nil {
		return
	}
	if connected {
		p.ConnectionState = models.ConnectionConnected
	} else {
		p.ConnectionState = models.ConnectionDisconnected
	}
}

// Snapshot returns a consistent read of the session for reconnecting
// clients, including advisory anti-cheat flags per participant.
func (m *Manager) Snapshot(ctx context.Context, sessionID uuid.UUID) (*models.Snapshot, error) {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	snap := &models.Snapshot{Session: ls.session}
	for _, p := range ls.participants {
		cp := *p
		if m.antiCheat != nil {
			flags := m.antiCheat.Flags(sessionID, p.UserID)
			cp.AntiCheat = &flags
		}
		snap.Participants = append(snap.Participants, cp)
	}
	if ls.session.Status == models.StatusRunning {
		if r := ls.currentRound(); r != nil && !r.finalized {
			view, err := r.view()
			if err != nil {
				return nil, fmt.Errorf("render round payload: %w", err)
			}
			snap.CurrentRound = view
		}
	}
	return snap, nil
}

// ListSessions returns summaries, newest first, optionally filtered by
// status. Consumed by invite discovery.
func (m *Manager) ListSessions(ctx context.Context, status *models.SessionStatus) ([]models.SessionSummary, error) {
	m.mu.RLock()
	live := make([]*liveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		live = append(live, ls)
	}
	m.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(live))
	for _, ls := range live {
		ls.mu.Lock()
		s := ls.summary()
		ls.mu.Unlock()
		if status != nil && s.Status != *status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SessionStatus reports the lifecycle state of one session. The telemetry
// collector uses it to reject events for closed sessions.
func (m *Manager) SessionStatus(sessionID uuid.UUID) (models.SessionStatus, error) {
	ls, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.session.Status, nil
}

// Run prunes terminal and stale sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	timer := m.clock.NewTimer(m.pruneInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
			m.prune()
			timer.Reset(m.pruneInterval)
		}
	}
}

// prune drops terminal sessions and abandoned lobbies older than twice the
// staleness window. Stale lobbies are already filtered out of invite
// candidates; this just bounds memory.
func (m *Manager) prune() {
	cutoff := m.clock.Now().Add(-2 * m.staleAfter)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ls := range m.sessions {
		ls.mu.Lock()
		expired := ls.session.CreatedAt.Before(cutoff) &&
			(ls.session.Status.Terminal() || ls.session.Status == models.StatusLobby)
		if expired && ls.session.Status == models.StatusLobby {
			m.cancelSessionLocked(ls, "lobby expired")
		}
		ls.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			log.Debug().Str("session_id", id.String()).Msg("pruned session")
		}
	}
}

func (m *Manager) lookup(sessionID uuid.UUID) (*liveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

// broadcast emits an event if a broadcaster is wired. Called under the
// session lock; broadcasters must not block.
func (m *Manager) broadcast(ls *liveSession, eventType events.Type, payload any) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.Broadcast(ls.session.ID, events.New(ls.session.ID, eventType, m.clock.Now(), payload))
}
