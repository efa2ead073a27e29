package app

import (
	"context"
	"flag"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/config"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/retrieval"
	"github.com/tildaslashalef/auditnest/internal/vertex"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.GCP.Project = "demo-project"
	cfg.GCP.Region = "europe-west4"
	cfg.VectorSearch = config.VectorSearchConfig{
		Backend:       retrieval.BackendLocal,
		Bucket:        "docs",
		NeighborCount: 4,
		Dimensions:    768,
	}
	cfg.Ranking = config.RankingConfig{
		Location:      "global",
		RankingConfig: "default_ranking_config",
		TitleField:    "id",
		TopN:          3,
	}
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	application, err := NewWithDB(testConfig(), db, loggy.NewNoopLogger(), nil)
	require.NoError(t, err)
	return application
}

func TestNewWithDB(t *testing.T) {
	application := newTestApp(t)

	assert.NotNil(t, application.History)
	assert.NotNil(t, application.Lighthouse)
	assert.NotNil(t, application.Gcloud)
	assert.NotNil(t, application.Scaffold)
	assert.NotNil(t, application.Parser)
	assert.NotEmpty(t, application.Scaffold.Catalog().Agents())
}

func TestConfigMapping(t *testing.T) {
	application := newTestApp(t)

	rc := application.RetrieverConfig()
	assert.Equal(t, retrieval.BackendLocal, rc.Backend)
	assert.Equal(t, "docs", rc.Bucket)
	assert.Equal(t, 4, rc.NeighborCount)

	cc := application.CompressorConfig()
	assert.Equal(t, "default_ranking_config", cc.RankingConfig)
	assert.Equal(t, 3, cc.TopN)
}

func TestRetrieverAndCompressor(t *testing.T) {
	application := newTestApp(t)
	client, err := vertex.NewClient(context.Background(), vertex.Config{Project: "demo-project"}, loggy.NewNoopLogger(),
		vertex.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})))
	require.NoError(t, err)
	application.SetVertex(client)

	store, err := application.Retriever(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &retrieval.LocalStore{}, store)

	compressor, err := application.Compressor(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, compressor)
}

func TestVertexRequiresProject(t *testing.T) {
	application := newTestApp(t)
	application.Config.GCP.Project = ""

	_, err := application.Vertex(context.Background())

	assert.ErrorIs(t, err, vertex.ErrMissingProject)
}

func TestFromContext(t *testing.T) {
	application := newTestApp(t)
	cliApp := &cli.App{Metadata: map[string]interface{}{"app": application}}

	got, err := FromContext(cli.NewContext(cliApp, flag.NewFlagSet("test", flag.ContinueOnError), nil))
	require.NoError(t, err)
	assert.Same(t, application, got)

	_, err = FromContext(cli.NewContext(&cli.App{}, flag.NewFlagSet("test", flag.ContinueOnError), nil))
	assert.Error(t, err)
}
