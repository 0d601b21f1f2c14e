// internal/store/chunks.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

// ChunkStore persists embedded resume chunks per resume version. A resume
// re-upload writes a new version; prior versions are kept for audit.
type ChunkStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewChunkStore(db *sql.DB, log logger.Logger) *ChunkStore {
	return &ChunkStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "chunks"}),
	}
}

// SaveVersion replaces any chunks stored under the version and writes the
// new set in one transaction.
func (s *ChunkStore) SaveVersion(ctx context.Context, version string, chunks []models.ResumeChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM resume_chunks WHERE resume_version = $1`, version); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	for _, ch := range chunks {
		embeddingJSON, err := json.Marshal(ch.Embedding)
		if err != nil {
			return errors.NewDatabaseInsertFailedError(fmt.Errorf("marshal embedding: %w", err))
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resume_chunks (
				resume_version, chunk_index, section, content, embedding
			) VALUES ($1, $2, $3, $4, $5)`,
			version, ch.Index, ch.Section, ch.Text, embeddingJSON,
		); err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	s.logger.Debug("chunk version saved", map[string]interface{}{
		"version": version,
		"chunks":  len(chunks),
	})
	return nil
}

// LoadVersion returns the chunks of one resume version in chunk order.
func (s *ChunkStore) LoadVersion(ctx context.Context, version string) ([]models.ResumeChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, section, content, embedding
		FROM resume_chunks
		WHERE resume_version = $1
		ORDER BY chunk_index`, version)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("select resume_chunks", err)
	}
	defer rows.Close()

	var chunks []models.ResumeChunk
	for rows.Next() {
		var (
			ch            models.ResumeChunk
			embeddingJSON []byte
		)
		if err := rows.Scan(&ch.Index, &ch.Section, &ch.Text, &embeddingJSON); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan resume_chunks", err)
		}
		if err := json.Unmarshal(embeddingJSON, &ch.Embedding); err != nil {
			return nil, errors.NewQueryExecutionFailedError("decode embedding", err)
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("iterate resume_chunks", err)
	}
	return chunks, nil
}
