package vectorstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/notebase-ai/notebase/internal/domain"
)

const chunkColumns = `id, notebook_id, user_id, title, content, tags, embedding, source_name, archive_key, created_at, updated_at`

// PostgresBackend persists chunks in a pgvector-enabled Postgres table.
// Tenant filtering happens in every statement; the global knowledge base is
// the empty notebook/user pair.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Insert(ctx context.Context, chunk *domain.Chunk) (string, error) {
	id := chunk.ID
	if id == "" {
		id = uuid.NewString()
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := chunk.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	tags := chunk.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := b.pool.Exec(ctx,
		`INSERT INTO chunks (id, notebook_id, user_id, title, content, tags, embedding, source_name, archive_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id,
		chunk.Tenant.NotebookID,
		chunk.Tenant.UserID,
		chunk.Title,
		chunk.Content,
		tags,
		pgvector.NewVector(chunk.Embedding),
		chunk.SourceName,
		nullableString(chunk.ArchiveKey),
		createdAt,
		updatedAt,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

// NativeSearch delegates ranking to the pgvector index. Score is cosine
// similarity (1 - cosine distance). Ties break on insertion order so results
// are deterministic.
func (b *PostgresBackend) NativeSearch(ctx context.Context, tenant domain.Tenant, queryVector []float32, k int, scoreThreshold float32) ([]domain.ScoredChunk, error) {
	vec := pgvector.NewVector(queryVector)

	rows, err := b.pool.Query(ctx,
		`SELECT `+chunkColumns+`, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 WHERE notebook_id = $2 AND user_id = $3 AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $4
		 ORDER BY score DESC, created_at ASC, id ASC
		 LIMIT $5`,
		vec, tenant.NotebookID, tenant.UserID, scoreThreshold, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []domain.ScoredChunk
	for rows.Next() {
		var hit domain.ScoredChunk
		if err := scanScoredChunk(rows, &hit); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// ListByTenant returns the tenant's full collection in insertion order, for
// the manual cosine-scan tier.
func (b *PostgresBackend) ListByTenant(ctx context.Context, tenant domain.Tenant) ([]domain.Chunk, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM chunks
		 WHERE notebook_id = $1 AND user_id = $2
		 ORDER BY created_at ASC, id ASC`,
		tenant.NotebookID, tenant.UserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := scanChunk(rows, &c); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// TextSearch matches chunks by keyword, no vectors involved. Each whitespace
// term must appear in the title or content.
func (b *PostgresBackend) TextSearch(ctx context.Context, tenant domain.Tenant, query string, k int) ([]domain.Chunk, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []domain.Chunk{}, nil
	}

	sql := `SELECT ` + chunkColumns + ` FROM chunks WHERE notebook_id = $1 AND user_id = $2`
	args := []interface{}{tenant.NotebookID, tenant.UserID}
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		n := strconv.Itoa(len(args))
		sql += ` AND (title ILIKE $` + n + ` OR content ILIKE $` + n + `)`
	}
	args = append(args, k)
	sql += ` ORDER BY created_at ASC, id ASC LIMIT $` + strconv.Itoa(len(args))

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := scanChunk(rows, &c); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

func (b *PostgresBackend) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = $1`, id)

	var c domain.Chunk
	if err := scanChunk(row, &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (b *PostgresBackend) UpdateMeta(ctx context.Context, id, title string, tags []string) (bool, error) {
	if tags == nil {
		tags = []string{}
	}
	tag, err := b.pool.Exec(ctx,
		`UPDATE chunks SET title = $2, tags = $3, updated_at = $4 WHERE id = $1`,
		id, title, tags, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByTenant removes the tenant's whole collection in one statement, so
// the delete is atomic and cannot touch another tenant's rows.
func (b *PostgresBackend) DeleteByTenant(ctx context.Context, tenant domain.Tenant) (int64, error) {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM chunks WHERE notebook_id = $1 AND user_id = $2`,
		tenant.NotebookID, tenant.UserID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner, c *domain.Chunk) error {
	var embedding *pgvector.Vector
	var archiveKey *string
	err := row.Scan(
		&c.ID,
		&c.Tenant.NotebookID,
		&c.Tenant.UserID,
		&c.Title,
		&c.Content,
		&c.Tags,
		&embedding,
		&c.SourceName,
		&archiveKey,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	if archiveKey != nil {
		c.ArchiveKey = *archiveKey
	}
	return nil
}

func scanScoredChunk(row rowScanner, hit *domain.ScoredChunk) error {
	var embedding *pgvector.Vector
	var archiveKey *string
	err := row.Scan(
		&hit.ID,
		&hit.Tenant.NotebookID,
		&hit.Tenant.UserID,
		&hit.Title,
		&hit.Content,
		&hit.Tags,
		&embedding,
		&hit.SourceName,
		&archiveKey,
		&hit.CreatedAt,
		&hit.UpdatedAt,
		&hit.Score,
	)
	if err != nil {
		return err
	}
	if embedding != nil {
		hit.Embedding = embedding.Slice()
	}
	if archiveKey != nil {
		hit.ArchiveKey = *archiveKey
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

