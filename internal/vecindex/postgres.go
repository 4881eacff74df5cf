package vecindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/roteiro-ai/roteiro/internal/chunker"
	"github.com/roteiro-ai/roteiro/internal/log"
)

// SearchTimeout bounds a single vector similarity query.
const SearchTimeout = 10 * time.Second

// Postgres is a pgvector-backed Index. Vectors are tagged with the embedding
// model that produced them so a model change never mixes incompatible spaces.
//
// Postgres is safe for concurrent use.
type Postgres struct {
	pool    *pgxpool.Pool
	modelID string
	logger  log.Logger
}

// NewPostgres creates an Index over the given pool. modelID identifies the
// embedding model whose vectors this index serves; Search only ever matches
// rows written with the same modelID.
func NewPostgres(pool *pgxpool.Pool, modelID string, logger log.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("vecindex: pool must not be nil")
	}
	if modelID == "" {
		return nil, errors.New("vecindex: modelID must not be empty")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{pool: pool, modelID: modelID, logger: logger}, nil
}

// Upsert writes chunks and their vectors in a single transaction.
// len(vectors) must equal len(chunks); a nil vector skips that chunk.
func (p *Postgres) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vecindex: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	written := 0
	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		vec := pgvector.NewVector(vectors[i])
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, text, category, priority, source_file, model_id, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			 ON CONFLICT (id) DO UPDATE
			 SET text = EXCLUDED.text,
			     category = EXCLUDED.category,
			     priority = EXCLUDED.priority,
			     source_file = EXCLUDED.source_file,
			     model_id = EXCLUDED.model_id,
			     embedding = EXCLUDED.embedding`,
			c.ID, c.Text, c.Category, c.Priority, c.SourceFile, p.modelID, vec,
		)
		if err != nil {
			return fmt.Errorf("upserting chunk %q: %w", c.ID, err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	committed = true

	p.logger.Debug("upserted chunks", "written", written, "skipped", len(chunks)-written)
	return nil
}

// Search returns the topK most similar chunks for the given vector,
// filtered to similarity >= minSimilarity. Cosine similarity is derived
// from pgvector's cosine distance operator.
func (p *Postgres) Search(ctx context.Context, vector []float32, topK int, minSimilarity float64) ([]Result, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	vec := pgvector.NewVector(vector)
	rows, err := p.pool.Query(queryCtx,
		`SELECT id, text, category, priority, source_file, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE model_id = $2
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, p.modelID, minSimilarity, topK,
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// Count returns the number of chunks indexed for this model.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE model_id = $1`, p.modelID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(count), nil
}

// DeleteBySource removes every chunk indexed from the given source file.
// Returns the number of rows removed.
func (p *Postgres) DeleteBySource(ctx context.Context, sourceFile string) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM chunks WHERE model_id = $1 AND source_file = $2`,
		p.modelID, sourceFile,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %q: %w", sourceFile, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanResults(rows pgx.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.Text, &r.Chunk.Category, &r.Chunk.Priority,
			&r.Chunk.SourceFile, &r.Chunk.CreatedAt, &r.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}
