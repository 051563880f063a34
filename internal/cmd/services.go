package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/api"
	"github.com/campuslink/arena/internal/archive"
	"github.com/campuslink/arena/internal/arena"
	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/gateway"
	"github.com/campuslink/arena/internal/models"
	"github.com/campuslink/arena/internal/relay"
	"github.com/campuslink/arena/internal/telemetry"
)

type Services struct {
	Engine            *arena.Manager
	Collector         *telemetry.Collector
	ConnectionManager *gateway.ConnectionManager
	WebSocket         *gateway.WebSocketHandler
	API               *api.Handler
	Relay             *relay.Broadcaster
	RelayPublisher    *relay.JetStreamPublisher
}

// deferredBroadcaster breaks the construction cycle between the engine and
// the connection manager: the engine broadcasts through it, and the real
// transports are bound once both sides exist.
type deferredBroadcaster struct {
	target arena.Broadcaster
}

func (d *deferredBroadcaster) Broadcast(sessionID uuid.UUID, event *events.Event) {
	if d.target != nil {
		d.target.Broadcast(sessionID, event)
	}
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	recorder, err := setupArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broadcaster := &deferredBroadcaster{}

	var engine *arena.Manager
	collector := telemetry.NewCollector(telemetry.Config{
		Status: func(sessionID uuid.UUID) (models.SessionStatus, error) {
			return engine.SessionStatus(sessionID)
		},
	})

	engine = arena.NewManager(arena.Config{
		Broadcaster:     broadcaster,
		Recorder:        recorder,
		AntiCheat:       collector,
		StaleAfter:      cfg.Arena.StaleAfter,
		SkewToleranceMs: cfg.Arena.SkewToleranceMs,
		ArchiveTimeout:  cfg.Arena.ArchiveTimeout,
		PruneInterval:   cfg.Arena.PruneInterval,
	})

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), engine, collector)

	services := &Services{
		Engine:            engine,
		Collector:         collector,
		ConnectionManager: connectionManager,
		WebSocket:         gateway.NewWebSocketHandler(connectionManager),
		API:               api.NewHandler(engine),
	}

	transports := relay.Fanout{connectionManager}
	if cfg.Relay.Enabled {
		jsCfg := relay.DefaultJetStreamConfig()
		jsCfg.URL = getEnv("NATS_URL", cfg.Relay.URL)
		publisher, err := relay.NewJetStreamPublisher(jsCfg)
		if err != nil {
			return nil, fmt.Errorf("setup relay: %w", err)
		}
		services.RelayPublisher = publisher
		services.Relay = relay.NewBroadcaster(publisher)
		transports = append(transports, services.Relay)
	}
	broadcaster.target = transports

	return services, nil
}

func setupArchive(ctx context.Context, cfg *Config) (arena.ResultRecorder, error) {
	switch cfg.Archive.Driver {
	case "postgres":
		pool, err := setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		store := archive.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "", "memory":
		log.Warn().Msg("using in-memory result archive; results will not survive restarts")
		return archive.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver)
	}
}
