package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
	"github.com/smallnest/coachrag/rag/store"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// VectorStore implements rag.VectorStore on SQLite. Embeddings are stored as
// JSON and ranked in process with the same cosine distance as the memory store.
type VectorStore struct {
	db        *sql.DB
	tableName string
	dimension int
	logger    log.Logger
}

var _ rag.VectorStore = (*VectorStore)(nil)

// Options configuration for SQLite connection
type Options struct {
	Path      string
	TableName string // Default "rag_chunks"
	Dimension int    // Embedding dimension, default 1536
	Logger    log.Logger
}

// NewVectorStore opens the database and creates the schema
func NewVectorStore(opts Options) (*VectorStore, error) {
	tableName := opts.TableName
	if tableName == "" {
		tableName = "rag_chunks"
	}
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("%w: invalid table name %q", rag.ErrInvalidArgument, tableName)
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open database: %w", rag.ErrStore, err)
	}
	// One writer at a time; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	dim := opts.Dimension
	if dim <= 0 {
		dim = 1536
	}

	s := &VectorStore{
		db:        db,
		tableName: tableName,
		dimension: dim,
		logger:    log.OrDefault(opts.Logger),
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the chunk table if it doesn't exist
func (s *VectorStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL,
			chunk_text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			meta TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_id ON %[1]s (doc_id);
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: failed to create schema: %w", rag.ErrStore, err)
	}
	return nil
}

// Close closes the database connection
func (s *VectorStore) Close() error {
	return s.db.Close()
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
	encoded := make([]string, len(embeddings))
	for i, emb := range embeddings {
		data, err := json.Marshal(emb)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to marshal embedding %d: %w", rag.ErrInvalidArgument, i, err)
		}
		encoded[i] = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", rag.ErrStore, err)
	}
	// database/sql rolls back on its own when ctx is cancelled; Rollback
	// after Commit returns sql.ErrTxDone and is harmless.
	defer tx.Rollback()

	if replace {
		query := fmt.Sprintf("DELETE FROM %s WHERE doc_id = ?", s.tableName)
		if _, err := tx.ExecContext(ctx, query, docID); err != nil {
			return 0, fmt.Errorf("%w: failed to delete chunks of %s: %w", rag.ErrStore, docID, err)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (doc_id, chunk_text, embedding, meta) VALUES (?, ?, ?, ?)", s.tableName)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare insert: %w", rag.ErrStore, err)
	}
	defer stmt.Close()

	for i := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, chunks[i], encoded[i], string(metaJSON)); err != nil {
			return 0, fmt.Errorf("%w: failed to insert chunk %d of %s: %w", rag.ErrStore, i, docID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit transaction: %w", rag.ErrStore, err)
	}
	return len(chunks), nil
}

// Search loads the candidate rows and ranks them by cosine distance
func (s *VectorStore) Search(ctx context.Context, embedding []float32, k int, docID string) ([]rag.Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrInvalidArgument, k)
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, store expects %d", rag.ErrInvalidArgument, len(embedding), s.dimension)
	}

	query := fmt.Sprintf("SELECT id, doc_id, chunk_text, embedding, meta FROM %s", s.tableName)
	var args []any
	if docID != "" {
		query += " WHERE doc_id = ?"
		args = append(args, docID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search chunks: %w", rag.ErrStore, err)
	}
	defer rows.Close()

	var candidates []rag.Chunk
	for rows.Next() {
		var c rag.Chunk
		var embJSON, metaJSON string
		if err := rows.Scan(&c.ID, &c.DocID, &c.Text, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: failed to scan chunk row: %w", rag.ErrStore, err)
		}
		if err := json.Unmarshal([]byte(embJSON), &c.Embedding); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal embedding of chunk %d: %w", rag.ErrStore, c.ID, err)
		}
		c.Metadata = map[string]any{}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal metadata of chunk %d: %w", rag.ErrStore, c.ID, err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating chunk rows: %w", rag.ErrStore, err)
	}

	return store.Rank(embedding, candidates, k), nil
}

// Delete removes every chunk of docID
func (s *VectorStore) Delete(ctx context.Context, docID string) (int, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE doc_id = ?", s.tableName)
	res, err := s.db.ExecContext(ctx, query, docID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete chunks of %s: %w", rag.ErrStore, docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count deleted chunks: %w", rag.ErrStore, err)
	}
	return int(n), nil
}

// Stats counts chunks and distinct documents
func (s *VectorStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	query := fmt.Sprintf("SELECT COUNT(*), COUNT(DISTINCT doc_id) FROM %s", s.tableName)

	var stats rag.StoreStats
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.Chunks, &stats.Documents); err != nil {
		return rag.StoreStats{}, fmt.Errorf("%w: failed to count chunks: %w", rag.ErrStore, err)
	}
	stats.Dimension = s.dimension
	return stats, nil
}
