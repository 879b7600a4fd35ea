package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/parrot/internal/session"
)

// Compile-time interface guards.
var (
	_ session.Store  = (*Store)(nil)
	_ session.Pruner = (*Store)(nil)
)

// Store is a session.Store backed by the sessions table.
type Store struct {
	db *sql.DB

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

func newStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get implements session.Store. A conversation that was never written
// yields the zero Data.
func (s *Store) Get(ctx context.Context, key session.Key) (session.Data, error) {
	var (
		d          session.Data
		transcript string
		created    int64
		updated    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, persona, transcript, created_at, updated_at FROM sessions WHERE key = ?`,
		key.String(),
	).Scan(&d.ID, &d.Persona, &transcript, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Data{}, nil
	}
	if err != nil {
		return session.Data{}, fmt.Errorf("sqlite: get session %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(transcript), &d.Transcript); err != nil {
		return session.Data{}, fmt.Errorf("sqlite: decode transcript of %s: %w", key, err)
	}
	d.CreatedAt = time.Unix(0, created).UTC()
	d.UpdatedAt = time.Unix(0, updated).UTC()
	return d, nil
}

// Set implements session.Store. The first write assigns the ID and
// creation time; later writes keep them.
func (s *Store) Set(ctx context.Context, key session.Key, data session.Data) error {
	transcript := data.Transcript
	if transcript == nil {
		transcript = session.Transcript{}
	}
	raw, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("sqlite: encode transcript of %s: %w", key, err)
	}

	id := data.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now().UnixNano()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (key, id, persona, transcript, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   persona = excluded.persona,
		   transcript = excluded.transcript,
		   updated_at = excluded.updated_at`,
		key.String(), id, data.Persona, string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: set session %s: %w", key, err)
	}
	return nil
}

// Prune implements session.Pruner.
func (s *Store) Prune(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := s.now().Add(-maxIdle).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune sessions: %w", err)
	}
	return int(n), nil
}

// Count returns the number of stored conversations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
