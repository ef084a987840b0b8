package rag

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const (
	chunkSize    = 800
	chunkOverlap = 200
)

// MaterialIndex is a sqlite-vec backed Retriever over course materials.
type MaterialIndex struct {
	db       *sql.DB
	embedder EmbeddingProvider
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// OpenIndex opens or creates the material index database at path.
func OpenIndex(path string, embedder EmbeddingProvider, logger zerolog.Logger) (*MaterialIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	idx := &MaterialIndex{
		db:       db,
		embedder: embedder,
		logger:   logger.With().Str("component", "material_index").Logger(),
	}

	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

func (idx *MaterialIndex) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS materials (
			course_id TEXT NOT NULL,
			material_id TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			indexed_at INTEGER NOT NULL,
			PRIMARY KEY (course_id, material_id)
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			material_id TEXT NOT NULL,
			content TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course_id);
		CREATE INDEX IF NOT EXISTS idx_chunks_material ON chunks(course_id, material_id);
	`

	if _, err := idx.db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, idx.embedder.Dimension())

	if _, err := idx.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (idx *MaterialIndex) Close() error {
	return idx.db.Close()
}

// IndexMaterial chunks, embeds and stores one material. Unchanged content
// (same hash) is skipped.
func (idx *MaterialIndex) IndexMaterial(ctx context.Context, courseID, materialID, content string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	hash := contentHash(content)

	var existing string
	err := idx.db.QueryRowContext(ctx,
		"SELECT content_hash FROM materials WHERE course_id = ? AND material_id = ?",
		courseID, materialID,
	).Scan(&existing)
	if err == nil && existing == hash {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up material: %w", err)
	}

	pieces := chunkText(content)
	if len(pieces) == 0 {
		return nil
	}

	vectors, err := idx.embedder.GenerateEmbeddings(ctx, pieces)
	if err != nil {
		return fmt.Errorf("failed to embed material %s: %w", materialID, err)
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteMaterialTx(tx, courseID, materialID); err != nil {
		return err
	}

	for i, piece := range pieces {
		chunkID, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate chunk id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, course_id, material_id, content) VALUES (?, ?, ?, ?)",
			chunkID, courseID, materialID, piece,
		); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		vecJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO embeddings (chunk_id, embedding) VALUES (?, ?)",
			chunkID, string(vecJSON),
		); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO materials (course_id, material_id, content_hash, indexed_at) VALUES (?, ?, ?, ?)",
		courseID, materialID, hash, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to record material: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	idx.logger.Debug().
		Str("course_id", courseID).
		Str("material_id", materialID).
		Int("chunks", len(pieces)).
		Msg("material indexed")

	return nil
}

// RemoveMaterial deletes a material and its chunks from the index.
func (idx *MaterialIndex) RemoveMaterial(ctx context.Context, courseID, materialID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteMaterialTx(tx, courseID, materialID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM materials WHERE course_id = ? AND material_id = ?",
		courseID, materialID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func deleteMaterialTx(tx *sql.Tx, courseID, materialID string) error {
	rows, err := tx.Query(
		"SELECT id FROM chunks WHERE course_id = ? AND material_id = ?",
		courseID, materialID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var chunkIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		chunkIDs = append(chunkIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range chunkIDs {
		if _, err := tx.Exec("DELETE FROM embeddings WHERE chunk_id = ?", id); err != nil {
			return err
		}
	}

	_, err = tx.Exec("DELETE FROM chunks WHERE course_id = ? AND material_id = ?", courseID, materialID)
	return err
}

// Search implements the Retriever contract via cosine distance over the
// vector table. An empty index returns an empty result set.
func (idx *MaterialIndex) Search(ctx context.Context, query string, constraints SearchConstraints) (*SearchResponse, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return &SearchResponse{Results: []SearchResult{}, Latency: time.Since(start)}, nil
	}

	limit := constraints.Limit
	if limit <= 0 {
		limit = MaxChunks
	}

	embedding, err := idx.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sqlQuery := `
		SELECT c.material_id, c.content,
			vec_distance_cosine(e.embedding, ?) AS distance
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.course_id = ?
	`
	args := []interface{}{string(embeddingJSON), constraints.CourseID}

	if len(constraints.MaterialIDs) > 0 {
		placeholders := strings.Repeat("?,", len(constraints.MaterialIDs))
		sqlQuery += " AND c.material_id IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, id := range constraints.MaterialIDs {
			args = append(args, id)
		}
	}

	sqlQuery += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := idx.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var materialID, content string
		var distance float64
		if err := rows.Scan(&materialID, &content, &distance); err != nil {
			return nil, err
		}

		// Cosine distance to similarity.
		results = append(results, SearchResult{
			Content:  content,
			SourceID: materialID,
			Score:    1.0 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results: results,
		Count:   len(results),
		Latency: time.Since(start),
	}, nil
}

// chunkText splits content into overlapping fixed-size chunks.
func chunkText(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	runes := []rune(content)
	if len(runes) <= chunkSize {
		return []string{content}
	}

	var pieces []string
	step := chunkSize - chunkOverlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return pieces
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
