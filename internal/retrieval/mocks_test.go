package retrieval

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
	"github.com/tildaslashalef/auditnest/internal/vertex"
)

type MockVectorSearch struct {
	mock.Mock
}

func (m *MockVectorSearch) GetIndex(ctx context.Context, nameOrID string) (*vertex.Index, error) {
	args := m.Called(ctx, nameOrID)
	idx, _ := args.Get(0).(*vertex.Index)
	return idx, args.Error(1)
}

func (m *MockVectorSearch) GetIndexEndpoint(ctx context.Context, nameOrID string) (*vertex.IndexEndpoint, error) {
	args := m.Called(ctx, nameOrID)
	ep, _ := args.Get(0).(*vertex.IndexEndpoint)
	return ep, args.Error(1)
}

func (m *MockVectorSearch) FindNeighbors(ctx context.Context, ep *vertex.IndexEndpoint, deployedIndexID string, vector []float32, k int) ([]vertex.Neighbor, error) {
	args := m.Called(ctx, ep, deployedIndexID, vector, k)
	neighbors, _ := args.Get(0).([]vertex.Neighbor)
	return neighbors, args.Error(1)
}

func (m *MockVectorSearch) UpsertDatapoints(ctx context.Context, index string, points []vertex.Datapoint) error {
	return m.Called(ctx, index, points).Error(0)
}

func (m *MockVectorSearch) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	args := m.Called(ctx, bucket, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockVectorSearch) WriteObject(ctx context.Context, bucket, name string, data json.RawMessage) error {
	return m.Called(ctx, bucket, name, data).Error(0)
}

type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, req vertex.RankRequest) (*vertex.RankResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*vertex.RankResponse)
	return resp, args.Error(1)
}

// fakeEmbedder maps each text to a fixed-length vector derived from its length
type fakeEmbedder struct {
	dims int
	err  error
}

func (e fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	for i := range v {
		v[i] = float32(len(text)+i) / 100
	}
	return v
}

func (e fakeEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(query), nil
}

func (e fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}
