package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/medflow/medinsight/internal/scan/domain"
	"github.com/medflow/medinsight/pkg/database"
)

const schema = `
	CREATE TABLE IF NOT EXISTS scan_chunks (
		session_id UUID NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding DOUBLE PRECISION[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, position)
	)`

const insertChunk = `
	INSERT INTO scan_chunks (session_id, position, content, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5)`

const selectSession = `
	SELECT position, content, embedding
	FROM scan_chunks
	WHERE session_id = $1
	ORDER BY position`

const deleteSession = `DELETE FROM scan_chunks WHERE session_id = $1`

type chunkRow struct {
	Position  int             `db:"position"`
	Content   string          `db:"content"`
	Embedding pq.Float64Array `db:"embedding"`
}

// PostgresStore persists chunks in the scan_chunks table. Ranking happens in
// Go, so plain Postgres without vector extensions is enough.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store on an open database
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the chunk table when it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create scan_chunks: %w", err)
	}
	return nil
}

// Add inserts all chunks in a single transaction
func (s *PostgresStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UTC()

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, c := range chunks {
			if _, err := tx.ExecContext(ctx, insertChunk,
				c.SessionID, c.Position, c.Content, toFloat64(c.Embedding), now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return mapErr(err, "failed to store chunks")
}

// Search loads a session's chunks and returns the k most similar to query
func (s *PostgresStore) Search(ctx context.Context, sessionID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, selectSession, sessionID); err != nil {
		return nil, mapErr(err, "failed to load chunks")
	}

	chunks := make([]domain.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = domain.Chunk{
			SessionID: sessionID,
			Position:  r.Position,
			Content:   r.Content,
			Embedding: toFloat32(r.Embedding),
		}
	}
	return Rank(chunks, query, k), nil
}

// DeleteSession removes every chunk of a session
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, deleteSession, sessionID)
	return mapErr(err, "failed to delete session chunks")
}

func mapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func toFloat64(v []float32) pq.Float64Array {
	out := make(pq.Float64Array, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
