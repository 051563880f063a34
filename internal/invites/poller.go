package invites

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/models"
)

// Invite is the actionable "you've been invited" view surfaced to the
// consumer. Derived transiently each poll cycle, never stored.
type Invite struct {
	SessionID      uuid.UUID          `json:"session_id"`
	ActivityKey    models.ActivityKey `json:"activity_key"`
	OpponentUserID string             `json:"opponent_user_id"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Config wires the poller. Interval defaults to 5s, StaleAfter to 30m.
type Config struct {
	ViewerUserID string
	Directory    Directory
	Handled      HandledStore
	Clock        clockwork.Clock
	Interval     time.Duration
	StaleAfter   time.Duration

	// OnInvite fires when a new invite is surfaced; OnCleared fires when
	// the active invite stops being a candidate. Both optional.
	OnInvite  func(Invite)
	OnCleared func(uuid.UUID)
}

// Poller is the client-side reconciliation loop that watches the sessions
// visible to a user and surfaces invite events exactly once per session.
// At most one invite is active at a time.
type Poller struct {
	viewerUserID string
	directory    Directory
	handled      HandledStore
	clock        clockwork.Clock
	interval     time.Duration
	staleAfter   time.Duration
	onInvite     func(Invite)
	onCleared    func(uuid.UUID)

	mu      sync.Mutex
	active  *Invite
	stopped bool
}

// NewPoller creates an invite discovery poller.
func NewPoller(cfg Config) *Poller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	return &Poller{
		viewerUserID: cfg.ViewerUserID,
		directory:    cfg.Directory,
		handled:      cfg.Handled,
		clock:        cfg.Clock,
		interval:     cfg.Interval,
		staleAfter:   cfg.StaleAfter,
		onInvite:     cfg.OnInvite,
		onCleared:    cfg.OnCleared,
	}
}

// Run polls on a fixed interval until ctx is cancelled. The first
// ErrEndpointUnavailable permanently stops polling for this process
// lifetime: a missing endpoint is a deployment fact, not a transient
// failure worth retrying forever.
func (p *Poller) Run(ctx context.Context) error {
	timer := p.clock.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
		}

		if err := p.Poll(ctx); err != nil {
			if errors.Is(err, ErrEndpointUnavailable) {
				log.Info().
					Str("viewer", p.viewerUserID).
					Msg("session discovery unavailable; invite polling disabled")
				return nil
			}
			// Transient failures keep the loop alive.
			log.Warn().Err(err).Str("viewer", p.viewerUserID).Msg("invite poll failed")
		}
		timer.Reset(p.interval)
	}
}

// Poll runs one reconciliation pass. Exported so consumers driving their
// own cadence (or tests) can tick explicitly.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrEndpointUnavailable
	}
	p.mu.Unlock()

	sessions, err := p.directory.LobbySessions(ctx)
	if err != nil {
		if errors.Is(err, ErrEndpointUnavailable) {
			p.mu.Lock()
			p.stopped = true
			p.clearActiveLocked()
			p.mu.Unlock()
		}
		return err
	}

	candidates := make([]Invite, 0, len(sessions))
	for _, s := range sessions {
		invite, ok, err := p.candidate(s)
		if err != nil {
			return err
		}
		if ok {
			candidates = append(candidates, invite)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// If the previously surfaced invite is no longer a candidate
	// (accepted, expired, superseded), clear it before surfacing another.
	if p.active != nil {
		stillCandidate := false
		for _, c := range candidates {
			if c.SessionID == p.active.SessionID {
				stillCandidate = true
				break
			}
		}
		if !stillCandidate {
			p.clearActiveLocked()
		}
	}

	if p.active == nil && len(candidates) > 0 {
		invite := candidates[0]
		p.active = &invite
		if p.onInvite != nil {
			p.onInvite(invite)
		}
		log.Debug().
			Str("session_id", invite.SessionID.String()).
			Str("viewer", p.viewerUserID).
			Msg("invite surfaced")
	}
	return nil
}

// candidate applies the invite filter: lobby status, viewer is a
// non-creator participant, a resolvable opponent exists, the session is
// younger than the staleness window, and the viewer has not handled it.
func (p *Poller) candidate(s models.SessionSummary) (Invite, bool, error) {
	if s.Status != models.StatusLobby {
		return Invite{}, false, nil
	}
	if s.CreatorUserID == p.viewerUserID {
		return Invite{}, false, nil
	}
	viewerIncluded := false
	opponent := ""
	for _, id := range s.ParticipantIDs {
		if id == p.viewerUserID {
			viewerIncluded = true
		} else if opponent == "" {
			opponent = id
		}
	}
	if !viewerIncluded || opponent == "" {
		return Invite{}, false, nil
	}
	if p.clock.Now().Sub(s.CreatedAt) > p.staleAfter {
		return Invite{}, false, nil
	}
	handled, err := p.handled.Contains(s.ID)
	if err != nil {
		return Invite{}, false, err
	}
	if handled {
		return Invite{}, false, nil
	}
	return Invite{
		SessionID:      s.ID,
		ActivityKey:    s.ActivityKey,
		OpponentUserID: opponent,
		CreatedAt:      s.CreatedAt,
	}, true, nil
}

// Acknowledge records that the viewer accepted, declined, or dismissed the
// invite, and clears it if currently active. The handled set persists
// across reloads.
func (p *Poller) Acknowledge(sessionID uuid.UUID) error {
	if err := p.handled.Add(sessionID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil && p.active.SessionID == sessionID {
		p.clearActiveLocked()
	}
	return nil
}

// Active returns the currently surfaced invite, if any.
func (p *Poller) Active() *Invite {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	cp := *p.active
	return &cp
}

func (p *Poller) clearActiveLocked() {
	if p.active == nil {
		return
	}
	cleared := p.active.SessionID
	p.active = nil
	if p.onCleared != nil {
		p.onCleared(cleared)
	}
}
