package retrieval

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tildaslashalef/auditnest/internal/loggy"
)

// RetrieverConfig selects and addresses a vector store
type RetrieverConfig struct {
	Backend         string
	Bucket          string
	Index           string
	IndexEndpoint   string
	DeployedIndexID string // empty looks the index up on the endpoint
	NeighborCount   int
	Dimensions      int // local backend only
}

// Deps are the collaborators a retriever is built from
type Deps struct {
	Embedder     Embedder
	VectorSearch VectorSearchAPI // vertex backend
	DB           *sql.DB         // local backend
	Logger       *loggy.Logger
}

// NewRetriever validates cfg and builds the configured store.
// The vertex backend resolves the index and endpoint before returning.
func NewRetriever(ctx context.Context, cfg RetrieverConfig, deps Deps) (Store, error) {
	if deps.Embedder == nil {
		return nil, invalidConfig("an embedder is required")
	}
	if cfg.NeighborCount <= 0 {
		cfg.NeighborCount = 10
	}
	logger := deps.Logger
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}

	switch cfg.Backend {
	case BackendLocal, "":
		if deps.DB == nil {
			return nil, invalidConfig("the local backend needs a database")
		}
		return NewLocalStore(deps.DB, deps.Embedder, cfg.Dimensions, cfg.NeighborCount, logger), nil

	case BackendVertex:
		if deps.VectorSearch == nil {
			return nil, invalidConfig("the vertex backend needs a vector search client")
		}
		switch {
		case cfg.Bucket == "":
			return nil, invalidConfig("bucket is required")
		case cfg.Index == "":
			return nil, invalidConfig("index is required")
		case cfg.IndexEndpoint == "":
			return nil, invalidConfig("index endpoint is required")
		}
		return newVectorSearchRetriever(ctx, cfg, deps.VectorSearch, deps.Embedder, logger)

	default:
		return nil, invalidConfig("unknown backend %q", cfg.Backend)
	}
}

func newVectorSearchRetriever(ctx context.Context, cfg RetrieverConfig, api VectorSearchAPI, embedder Embedder, logger *loggy.Logger) (*VectorSearchRetriever, error) {
	index, err := api.GetIndex(ctx, cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("resolving index: %w", err)
	}
	endpoint, err := api.GetIndexEndpoint(ctx, cfg.IndexEndpoint)
	if err != nil {
		return nil, fmt.Errorf("resolving index endpoint: %w", err)
	}

	deployedID := cfg.DeployedIndexID
	if deployedID == "" {
		id, ok := endpoint.DeployedIndexFor(index.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrIndexNotDeployed, index.Name, endpoint.Name)
		}
		deployedID = id
	}

	logger.Debug("Resolved vector search index", "index", index.Name, "endpoint", endpoint.Name, "deployed_index", deployedID)

	return &VectorSearchRetriever{
		api:             api,
		embedder:        embedder,
		index:           index.Name,
		endpoint:        endpoint,
		deployedIndexID: deployedID,
		bucket:          cfg.Bucket,
		k:               cfg.NeighborCount,
		logger:          logger,
	}, nil
}
