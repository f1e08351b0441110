package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mithun9421/handcricket/internal/cricketsvc/logger"
)

// SessionStore archives finalized game sessions in Postgres. It is a
// secondary, best-effort copy of the file sink, keyed by game_id.
type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

// Archive inserts one finalized session. A duplicate game_id is a no-op so
// the at-least-once sink can retry safely.
func (s *SessionStore) Archive(ctx context.Context, rec *logger.SessionRecord) error {
	record, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	query := `
		INSERT INTO game_sessions (game_id, started_at, ended_at, duration_ms, total_moves, winner, status, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO NOTHING
	`

	_, err = s.db.Exec(ctx, query,
		rec.Metadata.GameId,
		rec.Metadata.StartTime,
		rec.Metadata.EndTime,
		rec.Metadata.Duration,
		rec.Metadata.TotalMoves,
		rec.Metadata.Winner,
		rec.Metadata.Status,
		record,
	)
	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", rec.Metadata.GameId, err)
	}

	return nil
}
