package retrieval

import (
	"context"
	"slices"
)

// StaticRetriever returns a fixed set of documents for every query.
// The zero value returns none.
type StaticRetriever struct {
	Documents []Document
}

// Retrieve returns a copy of the configured documents
func (r StaticRetriever) Retrieve(_ context.Context, _ string) ([]Document, error) {
	if r.Documents == nil {
		return []Document{}, nil
	}
	return slices.Clone(r.Documents), nil
}

// NopCompressor discards every candidate
type NopCompressor struct{}

// Compress returns no documents
func (NopCompressor) Compress(_ context.Context, _ []Document, _ string) ([]Document, error) {
	return []Document{}, nil
}

var (
	_ Retriever  = StaticRetriever{}
	_ Compressor = NopCompressor{}
	_ Store      = (*LocalStore)(nil)
	_ Store      = (*VectorSearchRetriever)(nil)
	_ Compressor = (*RankingCompressor)(nil)
)
