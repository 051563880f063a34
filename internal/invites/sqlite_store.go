package invites

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the handled set to a local SQLite database so it
// survives reloads and process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the handled-set database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open handled-set database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS handled_invites (
		session_id TEXT PRIMARY KEY,
		acknowledged_at TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Contains(sessionID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM handled_invites WHERE session_id = ?`, sessionID.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Add(sessionID uuid.UUID) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO handled_invites (session_id, acknowledged_at) VALUES (?, ?)`,
		sessionID.String(), time.Now().UTC(),
	)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
