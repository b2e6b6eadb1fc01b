package semantic

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zotkit/zotkit/pkg/db"
	"github.com/zotkit/zotkit/pkg/utils"
)

const (
	upsertDocumentStatement = `
	INSERT INTO documents (item_key, item_version, item_type, title, content, embedding, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT(item_key) DO UPDATE SET
		item_version = excluded.item_version,
		item_type = excluded.item_type,
		title = excluded.title,
		content = excluded.content,
		embedding = excluded.embedding,
		indexed_at = excluded.indexed_at
	`

	selectVersionStatement   = `SELECT item_version FROM documents WHERE item_key = ?`
	selectDocumentsStatement = `SELECT item_key, item_type, title, content, embedding FROM documents`
	countDocumentsStatement  = `SELECT COUNT(*) FROM documents`
	clearDocumentsStatement  = `DELETE FROM documents`
)

// Document is one indexed item with its embedding.
type Document struct {
	ItemKey   string
	Version   int
	ItemType  string
	Title     string
	Content   string
	Embedding []float32
}

// Store persists embeddings in a SQLite file.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the vector store at path.
func OpenStore(path string) (*Store, error) {
	resolved, err := utils.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureParentDir(resolved); err != nil {
		return nil, err
	}
	conn, err := db.OpenDBConnection(resolved, true, "NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open semantic index %s: %w", resolved, err)
	}
	if err := db.UpgradeDB(conn, resolved, db.TargetSchemaVersion); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{db: conn}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, countDocumentsStatement).Scan(&n)
	return n, err
}

// Version returns the indexed version of an item, or -1 when the item is
// not indexed.
func (s *Store) Version(ctx context.Context, itemKey string) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, selectVersionStatement, itemKey).Scan(&v)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	return v, err
}

// Upsert inserts or replaces a document.
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, upsertDocumentStatement,
		doc.ItemKey, doc.Version, doc.ItemType, doc.Title, doc.Content, encodeVector(doc.Embedding))
	if err != nil {
		return fmt.Errorf("indexing item %s: %w", doc.ItemKey, err)
	}
	return nil
}

// Clear removes every document. Used by forced rebuilds.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, clearDocumentsStatement)
	return err
}

// All streams every document into memory. The index is expected to stay in
// the tens of thousands of rows, where a full scan with in-process scoring
// is cheaper than maintaining an approximate index.
func (s *Store) All(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, selectDocumentsStatement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var blob []byte
		if err := rows.Scan(&doc.ItemKey, &doc.ItemType, &doc.Title, &doc.Content, &blob); err != nil {
			return nil, err
		}
		doc.Embedding = decodeVector(blob)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// encodeVector packs float32s little-endian for BLOB storage.
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// cosine computes cosine similarity between two vectors, 0 when either is
// degenerate.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
