// Package retrieval builds document retrievers and re-ranking compressors.
//
// Callers choose implementations explicitly: production code passes Vertex AI
// backed dependencies to NewRetriever and NewCompressor, while tests pass
// StaticRetriever and NopCompressor directly.
package retrieval

import (
	"context"
	"errors"
	"fmt"
)

const (
	// BackendLocal stores vectors in the SQLite database
	BackendLocal = "local"
	// BackendVertex uses Vertex AI Vector Search with payloads in Cloud Storage
	BackendVertex = "vertex"
)

var (
	// ErrInvalidConfig is returned when a factory is given incomplete settings
	ErrInvalidConfig = errors.New("invalid retrieval config")
	// ErrIndexNotDeployed is returned when the index is not deployed to the endpoint
	ErrIndexNotDeployed = errors.New("index is not deployed to the endpoint")
	// ErrDimensionMismatch is returned when an embedding has the wrong length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Document is a retrievable piece of text
type Document struct {
	ID       string         `json:"id"`
	Source   string         `json:"source,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// Retriever returns the documents most relevant to a query
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// Store is a Retriever that can also index documents
type Store interface {
	Retriever
	Add(ctx context.Context, docs []Document) ([]string, error)
}

// Compressor narrows a candidate set down to the most relevant documents
type Compressor interface {
	Compress(ctx context.Context, docs []Document, query string) ([]Document, error)
}

// Embedder turns text into vectors
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Search retrieves candidates for query and re-ranks them when c is not nil
func Search(ctx context.Context, r Retriever, c Compressor, query string) ([]Document, error) {
	docs, err := r.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}
	if c == nil || len(docs) == 0 {
		return docs, nil
	}
	return c.Compress(ctx, docs, query)
}
