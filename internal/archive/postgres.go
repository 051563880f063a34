package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuslink/arena/internal/arena"
	"github.com/campuslink/arena/internal/arena/events"
	"github.com/campuslink/arena/internal/models"
)

// PostgresStore persists ended-session results for history and
// leaderboard queries. Implements arena.ResultRecorder.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS session_results (
    session_id   UUID PRIMARY KEY,
    activity_key TEXT NOT NULL,
    campus_id    TEXT NOT NULL DEFAULT '',
    ended_at     TIMESTAMPTZ NOT NULL,
    winner_user_id          TEXT,
    tiebreak_winner_user_id TEXT
);

CREATE TABLE IF NOT EXISTS session_result_participants (
    session_id UUID NOT NULL REFERENCES session_results(session_id) ON DELETE CASCADE,
    user_id    TEXT NOT NULL,
    score      DOUBLE PRECISION NOT NULL,
    elapsed_ms BIGINT NOT NULL,
    metrics    JSONB NOT NULL DEFAULT '{}'::jsonb,
    PRIMARY KEY (session_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_result_participants_user
    ON session_result_participants (user_id, session_id);
`

// EnsureSchema creates the result tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// RecordResult writes the terminal outcome and per-participant lines in a
// single transaction. Re-recording the same session is a no-op.
func (s *PostgresStore) RecordResult(ctx context.Context, result arena.Result) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertResult = `INSERT INTO session_results
        (session_id, activity_key, campus_id, ended_at, winner_user_id, tiebreak_winner_user_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (session_id) DO NOTHING`

	tag, err := tx.Exec(ctx, insertResult,
		result.SessionID,
		string(result.ActivityKey),
		result.CampusID,
		result.EndedAt,
		result.WinnerUserID,
		result.TieBreakWinnerUserID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	const insertParticipant = `INSERT INTO session_result_participants
        (session_id, user_id, score, elapsed_ms, metrics)
        VALUES ($1,$2,$3,$4,$5)`

	for _, pr := range result.Results {
		var metrics []byte
		metrics, err = json.Marshal(pr.Metrics)
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, insertParticipant,
			result.SessionID, pr.UserID, pr.Score, pr.ElapsedMs, metrics,
		); err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	return err
}

// Get retrieves one archived result, or nil if the session was never
// archived.
func (s *PostgresStore) Get(ctx context.Context, sessionID uuid.UUID) (*arena.Result, error) {
	const query = `SELECT session_id, activity_key, campus_id, ended_at, winner_user_id, tiebreak_winner_user_id
        FROM session_results WHERE session_id=$1`

	row := s.pool.QueryRow(ctx, query, sessionID)
	var result arena.Result
	var key string
	if err := row.Scan(&result.SessionID, &key, &result.CampusID, &result.EndedAt,
		&result.WinnerUserID, &result.TieBreakWinnerUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	result.ActivityKey = models.ActivityKey(key)

	participants, err := s.participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result.Results = participants
	return &result, nil
}

// ListForUser returns archived results the user took part in, newest
// first.
func (s *PostgresStore) ListForUser(ctx context.Context, userID string, limit int) ([]arena.Result, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `SELECT r.session_id, r.activity_key, r.campus_id, r.ended_at, r.winner_user_id, r.tiebreak_winner_user_id
        FROM session_results r
        JOIN session_result_participants p ON p.session_id = r.session_id
        WHERE p.user_id=$1
        ORDER BY r.ended_at DESC
        LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]arena.Result, 0, limit)
	for rows.Next() {
		var result arena.Result
		var key string
		if err := rows.Scan(&result.SessionID, &key, &result.CampusID, &result.EndedAt,
			&result.WinnerUserID, &result.TieBreakWinnerUserID); err != nil {
			return nil, err
		}
		result.ActivityKey = models.ActivityKey(key)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		participants, err := s.participants(ctx, results[i].SessionID)
		if err != nil {
			return nil, err
		}
		results[i].Results = participants
	}
	return results, nil
}

func (s *PostgresStore) participants(ctx context.Context, sessionID uuid.UUID) ([]events.ParticipantResult, error) {
	const query = `SELECT user_id, score, elapsed_ms, metrics
        FROM session_result_participants WHERE session_id=$1
        ORDER BY score DESC, elapsed_ms ASC`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.ParticipantResult
	for rows.Next() {
		var pr events.ParticipantResult
		var metrics []byte
		if err := rows.Scan(&pr.UserID, &pr.Score, &pr.ElapsedMs, &metrics); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metrics, &pr.Metrics); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
