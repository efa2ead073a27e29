package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

var defaultChromeFlags = []string{
	"--headless",
	"--no-sandbox",
	"--disable-gpu",
	"--disable-dev-shm-usage",
	"--disable-software-rasterizer",
}

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".auditnest")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	defaultDBPath := filepath.Join(configDir, "auditnest.db")
	defaultLogPath := filepath.Join(configDir, "auditnest.log")

	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// ENV_FILE_PATH points at a custom .env file
	if envFilePath := getEnvString("ENV_FILE_PATH", ""); envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else if err := godotenv.Load(configFilePath); err != nil {
		// Then try current directory as fallback
		_ = godotenv.Load()
	}

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	cfg.Lighthouse = LighthouseConfig{
		BinaryPath:     getEnvString("AUDITNEST_LIGHTHOUSE_PATH", filepath.Join(workDir, "node_modules", ".bin", "lighthouse")),
		ChromePath:     getEnvString("AUDITNEST_CHROME_PATH", "/usr/bin/google-chrome"),
		ChromeFlags:    getEnvList("AUDITNEST_CHROME_FLAGS", " ", defaultChromeFlags),
		OnlyCategories: getEnvList("AUDITNEST_LIGHTHOUSE_ONLY_CATEGORIES", ",", nil),
		CPUSlowdown:    getEnvFloat("AUDITNEST_LIGHTHOUSE_CPU_SLOWDOWN", 0),
		Timeout:        getEnvDuration("AUDITNEST_LIGHTHOUSE_TIMEOUT", 3*time.Minute),
		MaxRetries:     getEnvInt("AUDITNEST_LIGHTHOUSE_MAX_RETRIES", 1),
		OutputDir:      getEnvString("AUDITNEST_LIGHTHOUSE_OUTPUT_DIR", filepath.Join(configDir, "reports")),
		KeepRawReports: getEnvBool("AUDITNEST_LIGHTHOUSE_KEEP_REPORTS", true),
	}

	cfg.Chunking = ChunkingConfig{
		MaxSize: getEnvInt("AUDITNEST_CHUNK_MAX_SIZE", 8000),
	}

	cfg.GCP = GCPConfig{
		Project:        getEnvString("AUDITNEST_GCP_PROJECT", getEnvString("GOOGLE_CLOUD_PROJECT", "")),
		Region:         getEnvString("AUDITNEST_GCP_REGION", "us-central1"),
		Account:        getEnvString("AUDITNEST_GCP_ACCOUNT", ""),
		GcloudPath:     getEnvString("AUDITNEST_GCLOUD_PATH", "gcloud"),
		CommandTimeout: getEnvDuration("AUDITNEST_GCLOUD_TIMEOUT", 2*time.Minute),
	}

	cfg.Vertex = VertexConfig{
		EmbeddingModel:    getEnvString("AUDITNEST_VERTEX_EMBEDDING_MODEL", "text-embedding-005"),
		BaseURL:           getEnvString("AUDITNEST_VERTEX_BASE_URL", ""),
		StorageURL:        getEnvString("AUDITNEST_VERTEX_STORAGE_URL", "https://storage.googleapis.com"),
		RankingURL:        getEnvString("AUDITNEST_VERTEX_RANKING_URL", "https://discoveryengine.googleapis.com"),
		Timeout:           getEnvDuration("AUDITNEST_VERTEX_TIMEOUT", 60*time.Second),
		MaxRetries:        getEnvInt("AUDITNEST_VERTEX_MAX_RETRIES", 3),
		RequestsPerMinute: getEnvInt("AUDITNEST_VERTEX_REQUESTS_PER_MINUTE", 300),
		BurstLimit:        getEnvInt("AUDITNEST_VERTEX_BURST_LIMIT", 10),
	}

	cfg.VectorSearch = VectorSearchConfig{
		Backend:         getEnvString("AUDITNEST_VECTOR_BACKEND", "local"),
		Bucket:          getEnvString("AUDITNEST_VECTOR_BUCKET", ""),
		Index:           getEnvString("AUDITNEST_VECTOR_INDEX", ""),
		IndexEndpoint:   getEnvString("AUDITNEST_VECTOR_INDEX_ENDPOINT", ""),
		DeployedIndexID: getEnvString("AUDITNEST_VECTOR_DEPLOYED_INDEX_ID", ""),
		NeighborCount:   getEnvInt("AUDITNEST_VECTOR_NEIGHBOR_COUNT", 10),
		Dimensions:      getEnvInt("AUDITNEST_VECTOR_DIMENSIONS", 768),
	}

	cfg.Ranking = RankingConfig{
		Location:      getEnvString("AUDITNEST_RANKING_LOCATION", "global"),
		RankingConfig: getEnvString("AUDITNEST_RANKING_CONFIG", "default_ranking_config"),
		TitleField:    getEnvString("AUDITNEST_RANKING_TITLE_FIELD", "id"),
		Model:         getEnvString("AUDITNEST_RANKING_MODEL", ""),
		TopN:          getEnvInt("AUDITNEST_RANKING_TOP_N", 5),
	}

	cfg.Scaffold = ScaffoldConfig{
		DefaultRegion: getEnvString("AUDITNEST_SCAFFOLD_REGION", "us-central1"),
		OutputDir:     getEnvString("AUDITNEST_SCAFFOLD_OUTPUT_DIR", ""),
		InitGit:       getEnvBool("AUDITNEST_SCAFFOLD_INIT_GIT", true),
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("AUDITNEST_DB_PATH", defaultDBPath),
		BusyTimeout:     getEnvInt("AUDITNEST_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("AUDITNEST_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("AUDITNEST_DB_SYNCHRONOUS_MODE", "NORMAL"),
		CacheSize:       getEnvInt("AUDITNEST_DB_CACHE_SIZE", -64000), // ~64MB
		ForeignKeys:     getEnvBool("AUDITNEST_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("AUDITNEST_DB_CONN_MAX_LIFE", 5*time.Minute),
		QueryTimeout:    getEnvDuration("AUDITNEST_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("AUDITNEST_LOG_LEVEL", "info"),
		Format:     getEnvString("AUDITNEST_LOG_FORMAT", "text"),
		Output:     getEnvString("AUDITNEST_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("AUDITNEST_LOG_ADD_SOURCE", false),
		TimeFormat: getTimeFormat(getEnvString("AUDITNEST_LOG_TIME_FORMAT", "RFC3339")),
	}

	return cfg, cfg.Validate()
}
