package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/tildaslashalef/auditnest/internal/database"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/ulid"
)

// LocalStore keeps documents and their vectors in SQLite using sqlite-vec
type LocalStore struct {
	db       *sql.DB
	sq       sq.StatementBuilderType
	embedder Embedder
	dims     int
	k        int
	logger   *loggy.Logger
}

// NewLocalStore creates a store over the documents and document_vectors tables.
// A zero dims skips the length check.
func NewLocalStore(db *sql.DB, embedder Embedder, dims, k int, logger *loggy.Logger) *LocalStore {
	if k <= 0 {
		k = 10
	}
	return &LocalStore{
		db:       db,
		sq:       sq.StatementBuilder.PlaceholderFormat(sq.Question),
		embedder: embedder,
		dims:     dims,
		k:        k,
		logger:   logger,
	}
}

func (s *LocalStore) checkDims(v []float32) error {
	if s.dims > 0 && len(v) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.dims)
	}
	return nil
}

// Add embeds docs and stores them in one transaction
func (s *LocalStore) Add(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedding documents: expected %d vectors, got %d", len(docs), len(vectors))
	}

	ids := make([]string, len(docs))
	now := time.Now().UTC()

	err = database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		for i, d := range docs {
			if err := s.checkDims(vectors[i]); err != nil {
				return err
			}

			id := d.ID
			if id == "" {
				id = ulid.DocumentID()
			}
			ids[i] = id

			metadata, err := json.Marshal(nonNilMap(d.Metadata))
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", id, err)
			}

			query, args, err := s.sq.Insert("documents").
				Columns("id", "source", "content", "metadata", "created_at").
				Values(id, d.Source, d.Content, string(metadata), now).
				ToSql()
			if err != nil {
				return fmt.Errorf("building document insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("inserting document %s: %w", id, err)
			}

			blob, err := sqlite_vec.SerializeFloat32(vectors[i])
			if err != nil {
				return fmt.Errorf("serializing vector for %s: %w", id, err)
			}
			query, args, err = s.sq.Insert("document_vectors").
				Columns("document_id", "embedding").
				Values(id, blob).
				ToSql()
			if err != nil {
				return fmt.Errorf("building vector insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("inserting vector %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Indexed documents", "count", len(docs), "backend", BackendLocal)
	return ids, nil
}

// Retrieve runs a KNN query for the embedded query, closest first
func (s *LocalStore) Retrieve(ctx context.Context, query string) ([]Document, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if err := s.checkDims(vector); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	knn := s.sq.Select("document_id", "distance").
		From("document_vectors").
		Where("embedding MATCH ?", blob).
		Where("k = ?", s.k)

	sqlQuery, args, err := s.sq.Select("d.id", "d.source", "d.content", "d.metadata", "v.distance").
		FromSelect(knn, "v").
		Join("documents d ON d.id = v.document_id").
		OrderBy("v.distance").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building knn query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc      Document
			metadata string
			distance float64
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", doc.ID, err)
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		doc.Metadata["distance"] = distance
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
