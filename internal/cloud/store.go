package cloud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vantrack/vantrack-core/internal/infrastructure/database"
)

// SessionStore caches exported session cookies in SQLite so a restart can
// resume an existing login instead of burning a fresh authentication.
type SessionStore struct {
	db *database.DB
}

// NewSessionStore creates a store on the given database.
func NewSessionStore(db *database.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save upserts the cookie blob for a username.
func (s *SessionStore) Save(ctx context.Context, username string, cookies []byte) error {
	query := `
		INSERT INTO sessions (username, cookies, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			cookies = excluded.cookies,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, username, string(cookies), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cloud: save session: %w", err)
	}
	return nil
}

// Load returns the cached cookie blob for a username, or ErrNoSession.
func (s *SessionStore) Load(ctx context.Context, username string) ([]byte, error) {
	var cookies string
	query := `SELECT cookies FROM sessions WHERE username = ?`
	err := s.db.QueryRowContext(ctx, query, username).Scan(&cookies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("cloud: load session: %w", err)
	}
	return []byte(cookies), nil
}

// Delete drops the cached session for a username. Deleting a session that
// does not exist is not an error.
func (s *SessionStore) Delete(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("cloud: delete session: %w", err)
	}
	return nil
}
