package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/arena"
	"github.com/campuslink/arena/internal/models"
	"github.com/campuslink/arena/internal/observability"
)

// StatusFunc reports the lifecycle state of a session so the collector can
// reject telemetry for closed sessions.
type StatusFunc func(sessionID uuid.UUID) (models.SessionStatus, error)

// Config tunes the collector. Zero values get defaults from NewCollector.
type Config struct {
	Clock clockwork.Clock
	// Status is required; telemetry for ended sessions is rejected.
	Status StatusFunc
	// ThrottleWindow bounds accepted keystroke deltas to one per
	// participant per window.
	ThrottleWindow time.Duration
	// MaxDeltaChars is the largest keystroke delta a human can plausibly
	// produce within one throttle window; anything bigger is a cheating
	// signal.
	MaxDeltaChars int
}

// Collector ingests raw per-participant input events and reduces them to
// throttled, validated anti-cheat counters. The counters are advisory data
// for a policy layer and never part of the authoritative session outcome,
// so they use atomics rather than the session lock.
type Collector struct {
	mu     sync.Mutex
	tracks map[uuid.UUID]map[string]*track

	clock          clockwork.Clock
	status         StatusFunc
	throttleWindow time.Duration
	maxDeltaChars  int
}

type track struct {
	lastAccepted time.Time

	pasteAttempts atomic.Int64
	suspicion     atomic.Int64
	dropped       atomic.Int64
}

// event is the client wire shape for a telemetry message.
type event struct {
	Kind      models.TelemetryKind `json:"kind"`
	Timestamp time.Time            `json:"timestamp"`
	DeltaText string               `json:"delta_text,omitempty"`
	Blocked   bool                 `json:"blocked,omitempty"`
}

// NewCollector creates a telemetry collector.
func NewCollector(cfg Config) *Collector {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = 100 * time.Millisecond
	}
	if cfg.MaxDeltaChars <= 0 {
		cfg.MaxDeltaChars = 16
	}
	return &Collector{
		tracks:         make(map[uuid.UUID]map[string]*track),
		clock:          cfg.Clock,
		status:         cfg.Status,
		throttleWindow: cfg.ThrottleWindow,
		maxDeltaChars:  cfg.MaxDeltaChars,
	}
}

// Ingest processes one raw telemetry message from a participant. Malformed
// payloads are dropped and counted, never escalated into a session failure.
// Telemetry for a session that already ended returns SessionClosed so the
// sender can stop.
func (c *Collector) Ingest(sessionID uuid.UUID, userID string, raw json.RawMessage) error {
	if c.status != nil {
		status, err := c.status(sessionID)
		if err != nil {
			return err
		}
		if status.Terminal() {
			return fmt.Errorf("%w: telemetry after session end", arena.ErrSessionClosed)
		}
	}

	tr := c.track(sessionID, userID)

	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil || !validKind(ev.Kind) {
		tr.dropped.Add(1)
		observability.RecordTelemetryDropped("malformed")
		log.Debug().
			Str("session_id", sessionID.String()).
			Str("user_id", userID).
			Msg("dropped malformed telemetry")
		return nil
	}

	switch ev.Kind {
	case models.TelemetryKeystrokeDelta:
		c.ingestKeystroke(sessionID, userID, tr, ev)
	case models.TelemetryPasteAttempt:
		tr.pasteAttempts.Add(1)
		observability.RecordPasteAttempt()
		log.Debug().
			Str("session_id", sessionID.String()).
			Str("user_id", userID).
			Msg("blocked paste attempt recorded")
	}
	return nil
}

// ingestKeystroke accepts at most one delta per throttle window. A delta
// far larger than a human can type within one window bumps the suspicion
// counter; enforcement stays with the policy layer.
func (c *Collector) ingestKeystroke(sessionID uuid.UUID, userID string, tr *track, ev event) {
	now := c.clock.Now()

	c.mu.Lock()
	throttled := now.Sub(tr.lastAccepted) < c.throttleWindow
	if !throttled {
		tr.lastAccepted = now
	}
	c.mu.Unlock()

	if throttled {
		observability.RecordTelemetryDropped("throttled")
		return
	}
	if len(ev.DeltaText) > c.maxDeltaChars {
		tr.suspicion.Add(1)
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("user_id", userID).
			Int("delta_len", len(ev.DeltaText)).
			Msg("anomalous keystroke delta")
	}
}

// ReportSuspicion lets the scoring engine feed anomaly signals (e.g. client
// clock skew) into the same advisory counters.
func (c *Collector) ReportSuspicion(sessionID uuid.UUID, userID string, reason string) {
	tr := c.track(sessionID, userID)
	tr.suspicion.Add(1)
	log.Warn().
		Str("session_id", sessionID.String()).
		Str("user_id", userID).
		Str("reason", reason).
		Msg("suspicion reported")
}

// Flags returns the advisory anti-cheat view for one participant.
func (c *Collector) Flags(sessionID uuid.UUID, userID string) models.AntiCheatFlags {
	tr := c.track(sessionID, userID)
	return models.AntiCheatFlags{
		PasteAttempts:    tr.pasteAttempts.Load(),
		SuspicionCount:   tr.suspicion.Load(),
		DroppedTelemetry: tr.dropped.Load(),
	}
}

// Forget releases a session's counters once the session record is pruned.
func (c *Collector) Forget(sessionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tracks, sessionID)
}

func (c *Collector) track(sessionID uuid.UUID, userID string) *track {
	c.mu.Lock()
	defer c.mu.Unlock()
	byUser, ok := c.tracks[sessionID]
	if !ok {
		byUser = make(map[string]*track)
		c.tracks[sessionID] = byUser
	}
	tr, ok := byUser[userID]
	if !ok {
		tr = &track{}
		byUser[userID] = tr
	}
	return tr
}

func validKind(kind models.TelemetryKind) bool {
	return kind == models.TelemetryKeystrokeDelta || kind == models.TelemetryPasteAttempt
}
