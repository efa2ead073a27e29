// Package app wires configuration, storage and services into one container
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/tildaslashalef/auditnest/internal/config"
	"github.com/tildaslashalef/auditnest/internal/database"
	"github.com/tildaslashalef/auditnest/internal/execx"
	"github.com/tildaslashalef/auditnest/internal/gcloud"
	"github.com/tildaslashalef/auditnest/internal/history"
	"github.com/tildaslashalef/auditnest/internal/lighthouse"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/parser"
	"github.com/tildaslashalef/auditnest/internal/retrieval"
	"github.com/tildaslashalef/auditnest/internal/scaffold"
	"github.com/tildaslashalef/auditnest/internal/vertex"
	"github.com/urfave/cli/v2"
)

// App represents the application instance with its dependencies
type App struct {
	Config     *config.Config
	DB         *sql.DB
	History    *history.Service
	Lighthouse *lighthouse.Runner
	Gcloud     *gcloud.Service
	Scaffold   *scaffold.Scaffolder
	Parser     *parser.Service
	Logger     *loggy.Logger

	vertexOnce   sync.Once
	vertexClient *vertex.Client
	vertexErr    error
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
	)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	app, err := NewWithDB(cfg, db, loggy.GetGlobalLogger(), nil)
	if err != nil {
		return nil, err
	}

	loggy.Info("Application initialized successfully")
	return app, nil
}

// NewWithDB builds the services over an open database. A nil runner uses the
// operating system for subprocesses.
func NewWithDB(cfg *config.Config, db *sql.DB, logger *loggy.Logger, runner execx.Runner) (*App, error) {
	if runner == nil {
		runner = execx.OSRunner{}
	}

	scaffolder, err := scaffold.New(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	lighthouseRunner := lighthouse.NewRunner(lighthouse.Config{
		BinaryPath:     cfg.Lighthouse.BinaryPath,
		ChromePath:     cfg.Lighthouse.ChromePath,
		ChromeFlags:    cfg.Lighthouse.ChromeFlags,
		OnlyCategories: cfg.Lighthouse.OnlyCategories,
		CPUSlowdown:    cfg.Lighthouse.CPUSlowdown,
		Timeout:        cfg.Lighthouse.Timeout,
		MaxRetries:     cfg.Lighthouse.MaxRetries,
	}, runner, logger)

	gcloudService := gcloud.NewService(gcloud.Config{
		Binary:  cfg.GCP.GcloudPath,
		Timeout: cfg.GCP.CommandTimeout,
	}, runner, logger)

	return &App{
		Config:     cfg,
		DB:         db,
		History:    history.NewService(db, logger),
		Lighthouse: lighthouseRunner,
		Gcloud:     gcloudService,
		Scaffold:   scaffolder,
		Parser:     parser.NewService(logger),
		Logger:     logger,
	}, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Vertex returns the Vertex AI client, creating it on first use. Creation
// resolves Application Default Credentials, so commands that never touch
// Vertex do not need them.
func (app *App) Vertex(ctx context.Context) (*vertex.Client, error) {
	app.vertexOnce.Do(func() {
		app.vertexClient, app.vertexErr = vertex.NewClient(ctx, vertex.Config{
			Project:           app.Config.GCP.Project,
			Location:          app.Config.GCP.Region,
			EmbeddingModel:    app.Config.Vertex.EmbeddingModel,
			BaseURL:           app.Config.Vertex.BaseURL,
			StorageURL:        app.Config.Vertex.StorageURL,
			RankingURL:        app.Config.Vertex.RankingURL,
			Timeout:           app.Config.Vertex.Timeout,
			MaxRetries:        app.Config.Vertex.MaxRetries,
			RequestsPerMinute: app.Config.Vertex.RequestsPerMinute,
			BurstLimit:        app.Config.Vertex.BurstLimit,
		}, app.Logger)
	})
	if app.vertexErr != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", app.vertexErr)
	}
	return app.vertexClient, nil
}

// SetVertex installs a pre-built client, replacing lazy creation
func (app *App) SetVertex(client *vertex.Client) {
	app.vertexOnce.Do(func() {})
	app.vertexClient, app.vertexErr = client, nil
}

// RetrieverConfig maps the vector search settings onto the retrieval factory
func (app *App) RetrieverConfig() retrieval.RetrieverConfig {
	vs := app.Config.VectorSearch
	return retrieval.RetrieverConfig{
		Backend:         vs.Backend,
		Bucket:          vs.Bucket,
		Index:           vs.Index,
		IndexEndpoint:   vs.IndexEndpoint,
		DeployedIndexID: vs.DeployedIndexID,
		NeighborCount:   vs.NeighborCount,
		Dimensions:      vs.Dimensions,
	}
}

// CompressorConfig maps the ranking settings onto the retrieval factory
func (app *App) CompressorConfig() retrieval.CompressorConfig {
	r := app.Config.Ranking
	return retrieval.CompressorConfig{
		Location:      r.Location,
		RankingConfig: r.RankingConfig,
		TitleField:    r.TitleField,
		Model:         r.Model,
		TopN:          r.TopN,
	}
}

// Retriever builds the configured document store
func (app *App) Retriever(ctx context.Context) (retrieval.Store, error) {
	client, err := app.Vertex(ctx)
	if err != nil {
		return nil, err
	}
	return retrieval.NewRetriever(ctx, app.RetrieverConfig(), retrieval.Deps{
		Embedder:     client,
		VectorSearch: client,
		DB:           app.DB,
		Logger:       app.Logger,
	})
}

// Compressor builds the ranking compressor
func (app *App) Compressor(ctx context.Context) (retrieval.Compressor, error) {
	client, err := app.Vertex(ctx)
	if err != nil {
		return nil, err
	}
	compressor, err := retrieval.NewCompressor(app.CompressorConfig(), client)
	if err != nil {
		return nil, err
	}
	return compressor, nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}
	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
