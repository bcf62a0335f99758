package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
)

// DefaultTableName is the table chunks are stored in
const DefaultTableName = "rag_chunks"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// VectorStore implements rag.VectorStore on PostgreSQL with pgvector
type VectorStore struct {
	pool      DBPool
	tableName string
	dimension int
	logger    log.Logger
}

var _ rag.VectorStore = (*VectorStore)(nil)

// Options configuration for Postgres connection
type Options struct {
	ConnString string
	TableName  string // Default "rag_chunks"
	Dimension  int    // Embedding dimension, default 1536
	Logger     log.Logger
}

// NewVectorStore connects to Postgres and returns a vector store
func NewVectorStore(ctx context.Context, opts Options) (*VectorStore, error) {
	if err := validateTableName(opts.TableName); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create connection pool: %w", rag.ErrStore, err)
	}

	return NewVectorStoreWithPool(pool, opts), nil
}

// NewVectorStoreWithPool creates a vector store with an existing pool.
// Useful for testing with mocks.
func NewVectorStoreWithPool(pool DBPool, opts Options) *VectorStore {
	tableName := opts.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}
	dim := opts.Dimension
	if dim <= 0 {
		dim = 1536
	}
	return &VectorStore{
		pool:      pool,
		tableName: tableName,
		dimension: dim,
		logger:    log.OrDefault(opts.Logger),
	}
}

func validateTableName(name string) error {
	if name != "" && !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid table name %q", rag.ErrInvalidArgument, name)
	}
	return nil
}

// InitSchema creates the pgvector extension, the chunk table and its indexes
func (s *VectorStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGSERIAL PRIMARY KEY,
			doc_id VARCHAR(200) NOT NULL,
			chunk_text TEXT NOT NULL,
			embedding vector(%[2]d) NOT NULL,
			meta JSONB NOT NULL DEFAULT '{}'::jsonb
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_id ON %[1]s (doc_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING hnsw (embedding vector_cosine_ops);
	`, s.tableName, s.dimension)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: failed to create schema: %w", rag.ErrStore, err)
	}
	return nil
}

// Close closes the connection pool
func (s *VectorStore) Close() error {
	s.pool.Close()
	return nil
}

// Insert stores the chunks of docID in one transaction
func (s *VectorStore) Insert(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any) (int, error) {
	return s.write(ctx, docID, chunks, embeddings, metadata, false)
}

// Replace deletes the chunks of docID and stores the new ones in one transaction
func (s *VectorStore) Replace(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any) (int, error) {
	return s.write(ctx, docID, chunks, embeddings, metadata, true)
}

func (s *VectorStore) write(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any, replace bool) (int, error) {
	if err := rag.ValidateBatch(chunks, embeddings, s.dimension); err != nil {
		return 0, err
	}
	if len(chunks) == 0 && !replace {
		return 0, nil
	}

	metaJSON, err := json.Marshal(rag.CloneMetadata(metadata))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to marshal metadata: %w", rag.ErrInvalidArgument, err)
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", s.tableName)
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (doc_id, chunk_text, embedding, meta)
		VALUES ($1, $2, $3, $4)
	`, s.tableName)

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if replace {
			if _, err := tx.Exec(ctx, deleteSQL, docID); err != nil {
				return fmt.Errorf("failed to delete chunks of %s: %w", docID, err)
			}
		}
		for i := range chunks {
			if _, err := tx.Exec(ctx, insertSQL, docID, chunks[i], pgvector.NewVector(embeddings[i]), metaJSON); err != nil {
				return fmt.Errorf("failed to insert chunk %d of %s: %w", i, docID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// withTx runs fn in a transaction. Any error, including cancellation of ctx,
// rolls the transaction back; the rollback itself ignores cancellation.
func (s *VectorStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", rag.ErrStore, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed: %v", rbErr)
		}
		return fmt.Errorf("%w: %w", rag.ErrStore, err)
	}

	// A failed commit leaves the transaction closed and rolled back.
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", rag.ErrStore, err)
	}
	return nil
}

// maxEfSearch is the largest hnsw.ef_search pgvector accepts
const maxEfSearch = 1000

// queryer is satisfied by both the pool and a transaction
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Search returns the k chunks closest to embedding by cosine distance.
//
// A doc_id filter, or a k above what the HNSW index can return, ranks the
// candidate rows exactly. The HNSW scan applies WHERE after its approximate
// candidate list, so a filtered index scan can drop qualifying rows.
func (s *VectorStore) Search(ctx context.Context, embedding []float32, k int, docID string) ([]rag.Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrInvalidArgument, k)
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, store expects %d", rag.ErrInvalidArgument, len(embedding), s.dimension)
	}

	args := []any{pgvector.NewVector(embedding), k}

	if docID != "" || k > maxEfSearch {
		where := ""
		if docID != "" {
			where = "WHERE doc_id = $3"
			args = append(args, docID)
		}
		query := fmt.Sprintf(`
			WITH candidates AS MATERIALIZED (
				SELECT id, doc_id, chunk_text, meta, embedding
				FROM %s
				%s
			)
			SELECT id, doc_id, chunk_text, meta, embedding <=> $1 AS distance
			FROM candidates
			ORDER BY distance ASC, id ASC
			LIMIT $2
		`, s.tableName, where)

		chunks, err := s.queryChunks(ctx, s.pool, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rag.ErrStore, err)
		}
		return chunks, nil
	}

	query := fmt.Sprintf(`
		SELECT id, doc_id, chunk_text, meta, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance ASC, id ASC
		LIMIT $2
	`, s.tableName)

	// ef_search bounds how many rows an HNSW scan yields; it must cover k.
	efSearch := strconv.Itoa(max(k, 40))

	var chunks []rag.Chunk
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT set_config('hnsw.ef_search', $1, true)", efSearch); err != nil {
			return fmt.Errorf("failed to set hnsw.ef_search: %w", err)
		}
		var err error
		chunks, err = s.queryChunks(ctx, tx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *VectorStore) queryChunks(ctx context.Context, q queryer, query string, args ...any) ([]rag.Chunk, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]rag.Chunk, 0, 8)
	for rows.Next() {
		var c rag.Chunk
		var metaJSON []byte
		if err := rows.Scan(&c.ID, &c.DocID, &c.Text, &metaJSON, &c.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		c.Metadata = map[string]any{}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata of chunk %d: %w", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}

	return chunks, nil
}

// Delete removes every chunk of docID
func (s *VectorStore) Delete(ctx context.Context, docID string) (int, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", s.tableName)
	tag, err := s.pool.Exec(ctx, query, docID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete chunks of %s: %w", rag.ErrStore, docID, err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats counts chunks and distinct documents
func (s *VectorStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT doc_id) FROM %s", s.tableName)

	var chunks, docs int64
	if err := s.pool.QueryRow(ctx, query).Scan(&chunks, &docs); err != nil {
		return rag.StoreStats{}, fmt.Errorf("%w: failed to count chunks: %w", rag.ErrStore, err)
	}
	return rag.StoreStats{
		Chunks:    int(chunks),
		Documents: int(docs),
		Dimension: s.dimension,
	}, nil
}
