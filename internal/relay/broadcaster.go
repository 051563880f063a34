package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/arena"
	"github.com/campuslink/arena/internal/arena/events"
)

// Publisher is the downstream sink the broadcaster drains into.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Broadcaster adapts a Publisher to the engine's non-blocking broadcast
// contract. Events are queued on a buffered channel and published from a
// single worker; a full queue drops the event rather than stalling the
// session lock.
type Broadcaster struct {
	publisher      Publisher
	queue          chan *events.Event
	publishTimeout time.Duration
}

func NewBroadcaster(publisher Publisher) *Broadcaster {
	return &Broadcaster{
		publisher:      publisher,
		queue:          make(chan *events.Event, 1000),
		publishTimeout: 5 * time.Second,
	}
}

// Broadcast enqueues the event for relay. Never blocks.
func (b *Broadcaster) Broadcast(sessionID uuid.UUID, event *events.Event) {
	select {
	case b.queue <- event:
	default:
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("event_type", string(event.Type)).
			Msg("relay queue full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-b.queue:
			pubCtx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
			if err := b.publisher.Publish(pubCtx, event); err != nil {
				log.Error().Err(err).
					Str("event_id", event.ID).
					Str("event_type", string(event.Type)).
					Msg("failed to relay event")
			}
			cancel()
		}
	}
}

// Fanout broadcasts to every wired transport in order.
type Fanout []arena.Broadcaster

func (f Fanout) Broadcast(sessionID uuid.UUID, event *events.Event) {
	for _, b := range f {
		b.Broadcast(sessionID, event)
	}
}
