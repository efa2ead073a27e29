package vertex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"golang.org/x/oauth2"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), Config{
		Project:        "test-project",
		Location:       "us-central1",
		EmbeddingModel: "test-embedding",
		BaseURL:        server.URL,
		StorageURL:     server.URL,
		RankingURL:     server.URL,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
	}, loggy.NewNoopLogger(), WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})))
	require.NoError(t, err)
	client.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return client
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, loggy.NewNoopLogger())
	assert.ErrorIs(t, err, ErrMissingProject)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(context.Background(), Config{Project: "p", Location: "europe-west4"}, loggy.NewNoopLogger(),
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})))

	require.NoError(t, err)
	assert.Equal(t, "https://europe-west4-aiplatform.googleapis.com", client.baseURL)
	assert.Equal(t, "text-embedding-005", client.cfg.EmbeddingModel)
	assert.Equal(t, "https://storage.googleapis.com", client.cfg.StorageURL)
	assert.Equal(t, "https://discoveryengine.googleapis.com", client.cfg.RankingURL)
}

func TestEmbed(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/test-project/locations/us-central1/publishers/google/models/test-embedding:predict", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req embedRequest
		decodeBody(t, r, &req)
		require.Len(t, req.Instances, 2)
		assert.Equal(t, "alpha", req.Instances[0].Content)
		assert.Equal(t, TaskRetrievalDocument, req.Instances[0].TaskType)

		_, _ = w.Write([]byte(`{"predictions":[{"embeddings":{"values":[0.1,0.2]}},{"embeddings":{"values":[0.3,0.4]}}]}`))
	})

	vectors, err := client.EmbedDocuments(context.Background(), []string{"alpha", "beta"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
}

func TestEmbedPredictionMismatch(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	})

	_, err := client.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
}

func TestGetIndexAndEndpoint(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/projects/test-project/locations/us-central1/indexes/123":
			_, _ = w.Write([]byte(`{"name":"projects/test-project/locations/us-central1/indexes/123","displayName":"docs","metadata":{"config":{"dimensions":768}}}`))
		case "/v1/projects/other/locations/us-central1/indexEndpoints/456":
			_, _ = w.Write([]byte(`{"name":"projects/other/locations/us-central1/indexEndpoints/456","publicEndpointDomainName":"example.invalid","deployedIndexes":[{"id":"deployed_docs","index":"projects/test-project/locations/us-central1/indexes/123"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	idx, err := client.GetIndex(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "docs", idx.DisplayName)
	assert.Equal(t, 768, idx.Metadata.Config.Dimensions)

	ep, err := client.GetIndexEndpoint(context.Background(), "projects/other/locations/us-central1/indexEndpoints/456")
	require.NoError(t, err)
	id, ok := ep.DeployedIndexFor(idx.Name)
	assert.True(t, ok)
	assert.Equal(t, "deployed_docs", id)

	_, ok = ep.DeployedIndexFor("missing")
	assert.False(t, ok)
}

func TestFindNeighbors(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/p/locations/l/indexEndpoints/456:findNeighbors", r.URL.Path)

		var req findNeighborsRequest
		decodeBody(t, r, &req)
		assert.Equal(t, "deployed", req.DeployedIndexID)
		require.Len(t, req.Queries, 1)
		assert.Equal(t, 3, req.Queries[0].NeighborCount)
		assert.Equal(t, []float32{1, 0}, req.Queries[0].Datapoint.FeatureVector)

		_, _ = w.Write([]byte(`{"nearestNeighbors":[{"id":"query","neighbors":[
			{"datapoint":{"datapointId":"doc-1"},"distance":0.12},
			{"datapoint":{"datapointId":"doc-2"},"distance":0.5}]}]}`))
	})

	// The pinned base URL wins over the public domain
	ep := &IndexEndpoint{Name: "projects/p/locations/l/indexEndpoints/456", PublicEndpointDomainName: "example.invalid"}
	neighbors, err := client.FindNeighbors(context.Background(), ep, "deployed", []float32{1, 0}, 3)

	require.NoError(t, err)
	assert.Equal(t, []Neighbor{{ID: "doc-1", Distance: 0.12}, {ID: "doc-2", Distance: 0.5}}, neighbors)
}

func TestObjects(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.EscapedPath() == "/storage/v1/b/bucket/o/documents%2Fdoc-1":
			assert.Equal(t, "media", r.URL.Query().Get("alt"))
			_, _ = w.Write([]byte("plain text payload"))
		case r.Method == http.MethodPost && r.URL.Path == "/upload/storage/v1/b/bucket/o":
			assert.Equal(t, "documents/doc-2", r.URL.Query().Get("name"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"page_content":"x"}`, string(body))
			_, _ = w.Write([]byte(`{"name":"documents/doc-2"}`))
		default:
			http.NotFound(w, r)
		}
	})

	data, err := client.ReadObject(context.Background(), "bucket", "documents/doc-1")
	require.NoError(t, err)
	assert.Equal(t, "plain text payload", string(data))

	require.NoError(t, client.WriteObject(context.Background(), "bucket", "documents/doc-2", json.RawMessage(`{"page_content":"x"}`)))
}

func TestRank(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/test-project/locations/global/rankingConfigs/default_ranking_config:rank", r.URL.Path)

		var req RankRequest
		decodeBody(t, r, &req)
		assert.Equal(t, "fix images", req.Query)
		assert.Equal(t, 1, req.TopN)
		require.Len(t, req.Records, 2)

		_, _ = w.Write([]byte(`{"records":[{"id":"b","content":"second","score":0.9}]}`))
	})

	resp, err := client.Rank(context.Background(), RankRequest{
		Query:   "fix images",
		TopN:    1,
		Records: []RankRecord{{ID: "a", Content: "first"}, {ID: "b", Content: "second"}},
	})

	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "b", resp.Records[0].ID)
	assert.Equal(t, 0.9, resp.Records[0].Score)
}

func TestRetriesOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"try later","status":"UNAVAILABLE"}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"permission denied","status":"PERMISSION_DENIED"}}`))
	})

	err := client.Ping(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", apiErr.Status)
	assert.Equal(t, "permission denied", apiErr.Message)
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := client.GetIndex(context.Background(), "1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "slow down", apiErr.Message)
	assert.True(t, apiErr.Retryable())
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(0, 0)
	assert.Equal(t, 1, unlimited.Burst())

	limited := newLimiter(120, 5)
	assert.InDelta(t, 2.0, float64(limited.Limit()), 1e-9)
	assert.Equal(t, 5, limited.Burst())
}
