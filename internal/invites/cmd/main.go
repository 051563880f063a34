package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/arena/internal/invites"
)

// Invite watcher: polls the arena control plane for pending invites on
// behalf of one user and prints them as they surface. The handled set is
// persisted locally so dismissed invites never resurface.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	userID := os.Getenv("ARENA_USER_ID")
	if userID == "" {
		log.Fatal().Msg("ARENA_USER_ID environment variable is required")
	}
	baseURL := getEnv("ARENA_URL", "http://localhost:8080")
	storePath := getEnv("INVITE_STORE_PATH", "invites.db")

	store, err := invites.NewSQLiteStore(storePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open handled-invite store")
	}
	defer store.Close()

	poller := invites.NewPoller(invites.Config{
		ViewerUserID: userID,
		Directory:    invites.NewHTTPDirectory(baseURL, userID),
		Handled:      store,
		OnInvite: func(inv invites.Invite) {
			log.Info().
				Str("session_id", inv.SessionID.String()).
				Str("activity_key", string(inv.ActivityKey)).
				Str("opponent", inv.OpponentUserID).
				Msg("invite received")
		},
		OnCleared: func(sessionID uuid.UUID) {
			log.Info().Str("session_id", sessionID.String()).Msg("invite cleared")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := poller.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("invite poller failed")
	}
	log.Info().Msg("invite watcher stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
