package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"path"

	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/ulid"
	"github.com/tildaslashalef/auditnest/internal/vertex"
)

const documentPrefix = "documents"

// VectorSearchAPI is the part of the Vertex client the retriever needs
type VectorSearchAPI interface {
	GetIndex(ctx context.Context, nameOrID string) (*vertex.Index, error)
	GetIndexEndpoint(ctx context.Context, nameOrID string) (*vertex.IndexEndpoint, error)
	FindNeighbors(ctx context.Context, ep *vertex.IndexEndpoint, deployedIndexID string, vector []float32, k int) ([]vertex.Neighbor, error)
	UpsertDatapoints(ctx context.Context, index string, points []vertex.Datapoint) error
	ReadObject(ctx context.Context, bucket, name string) ([]byte, error)
	WriteObject(ctx context.Context, bucket, name string, data json.RawMessage) error
}

// storedDocument is the Cloud Storage payload kept alongside each vector
type storedDocument struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// VectorSearchRetriever queries a deployed Vector Search index and loads
// the matching documents from Cloud Storage
type VectorSearchRetriever struct {
	api             VectorSearchAPI
	embedder        Embedder
	index           string
	endpoint        *vertex.IndexEndpoint
	deployedIndexID string
	bucket          string
	k               int
	logger          *loggy.Logger
}

// Retrieve embeds query and returns its nearest documents, closest first
func (r *VectorSearchRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	neighbors, err := r.api.FindNeighbors(ctx, r.endpoint, r.deployedIndexID, vector, r.k)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(neighbors))
	for _, n := range neighbors {
		data, err := r.api.ReadObject(ctx, r.bucket, objectName(n.ID))
		if err != nil {
			return nil, err
		}

		var stored storedDocument
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", n.ID, err)
		}

		doc := Document{ID: n.ID, Content: stored.PageContent, Metadata: stored.Metadata}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		if src, ok := doc.Metadata["source"].(string); ok {
			doc.Source = src
		}
		doc.Metadata["distance"] = n.Distance
		docs = append(docs, doc)
	}

	r.logger.Debug("Retrieved documents", "query_len", len(query), "neighbors", len(neighbors))
	return docs, nil
}

// Add uploads document payloads and streams their vectors into the index
func (r *VectorSearchRetriever) Add(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedding documents: expected %d vectors, got %d", len(docs), len(vectors))
	}

	ids := make([]string, len(docs))
	points := make([]vertex.Datapoint, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = ulid.DocumentID()
		}
		ids[i] = id

		metadata := maps.Clone(d.Metadata)
		if metadata == nil {
			metadata = map[string]any{}
		}
		if d.Source != "" {
			metadata["source"] = d.Source
		}
		payload, err := json.Marshal(storedDocument{PageContent: d.Content, Metadata: metadata})
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", id, err)
		}
		if err := r.api.WriteObject(ctx, r.bucket, objectName(id), payload); err != nil {
			return nil, err
		}

		points[i] = vertex.Datapoint{DatapointID: id, FeatureVector: vectors[i]}
	}

	if err := r.api.UpsertDatapoints(ctx, r.index, points); err != nil {
		return nil, err
	}

	r.logger.Info("Indexed documents", "count", len(docs), "index", r.index)
	return ids, nil
}

func objectName(id string) string {
	return path.Join(documentPrefix, id)
}
