package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	Lighthouse   LighthouseConfig
	Chunking     ChunkingConfig
	GCP          GCPConfig
	Vertex       VertexConfig
	VectorSearch VectorSearchConfig
	Ranking      RankingConfig
	Scaffold     ScaffoldConfig
	Database     DatabaseConfig
	Logging      LoggingConfig
	configDir    string // Internal: Directory where config was loaded from
}

// LighthouseConfig controls how the Lighthouse CLI is invoked
type LighthouseConfig struct {
	BinaryPath     string        // Path to the lighthouse executable
	ChromePath     string        // Exported as CHROME_PATH for the child process
	ChromeFlags    []string      // Passed through --chrome-flags
	OnlyCategories []string      // Restricts the audit to these categories (empty runs all)
	CPUSlowdown    float64       // Throttling CPU slowdown multiplier (0 keeps the Lighthouse default)
	Timeout        time.Duration // Per-run timeout
	MaxRetries     int           // Retries after a failed run
	OutputDir      string        // Where saved reports go
	KeepRawReports bool          // Whether the audit command writes the raw report to OutputDir
}

// ChunkingConfig holds the report chunker settings
type ChunkingConfig struct {
	MaxSize int // Serialized-size budget per chunk
}

// GCPConfig holds Google Cloud project settings shared by gcloud and vertex
type GCPConfig struct {
	Project        string        // Project ID
	Region         string        // Default region
	Account        string        // Account to activate (empty keeps the active one)
	GcloudPath     string        // gcloud executable
	CommandTimeout time.Duration // Timeout for each gcloud invocation
}

// VertexConfig holds Vertex AI client settings
type VertexConfig struct {
	EmbeddingModel string        // Text embedding model
	BaseURL        string        // Override for the regional aiplatform endpoint (tests, proxies)
	StorageURL     string        // Cloud Storage JSON API base URL
	RankingURL     string        // Discovery Engine API base URL
	Timeout        time.Duration // Request timeout
	MaxRetries     int           // Maximum number of retries on failure

	// Rate limiting
	RequestsPerMinute int
	BurstLimit        int
}

// VectorSearchConfig selects and addresses the vector store
type VectorSearchConfig struct {
	Backend         string // local or vertex
	Bucket          string // GCS bucket holding document payloads
	Index           string // Index resource ID or name
	IndexEndpoint   string // Index endpoint resource ID or name
	DeployedIndexID string // Deployed index ID on the endpoint
	NeighborCount   int    // Neighbours fetched per query
	Dimensions      int    // Embedding dimensions for the local store
}

// RankingConfig holds the re-ranking compressor settings
type RankingConfig struct {
	Location      string // Ranking API location
	RankingConfig string // Ranking config name
	TitleField    string // Metadata field used as the record title
	Model         string // Ranking model (empty uses the service default)
	TopN          int    // Documents kept after ranking
}

// ScaffoldConfig holds project creation defaults
type ScaffoldConfig struct {
	DefaultRegion string // Region written into generated projects
	OutputDir     string // Parent directory for new projects (empty uses the working directory)
	InitGit       bool   // Whether new projects get a git repository
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	CacheSize       int           // Cache size in KiB
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateLighthouse(); err != nil {
		return fmt.Errorf("lighthouse config: %w", err)
	}

	if c.Chunking.MaxSize <= 0 {
		return fmt.Errorf("chunking config: max size must be positive")
	}

	if err := c.validateVertex(); err != nil {
		return fmt.Errorf("vertex config: %w", err)
	}

	if err := c.validateVectorSearch(); err != nil {
		return fmt.Errorf("vector search config: %w", err)
	}

	if c.Ranking.TopN <= 0 {
		return fmt.Errorf("ranking config: top n must be positive")
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateLighthouse() error {
	if c.Lighthouse.BinaryPath == "" {
		return fmt.Errorf("binary path cannot be empty")
	}

	if c.Lighthouse.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Lighthouse.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if c.Lighthouse.CPUSlowdown < 0 {
		return fmt.Errorf("cpu slowdown cannot be negative")
	}

	return nil
}

func (c *Config) validateVertex() error {
	if c.Vertex.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Vertex.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if c.Vertex.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive")
	}

	if c.Vertex.BurstLimit <= 0 {
		return fmt.Errorf("burst limit must be positive")
	}

	return nil
}

func (c *Config) validateVectorSearch() error {
	switch c.VectorSearch.Backend {
	case "local", "vertex":
	default:
		return fmt.Errorf("invalid backend: %s (must be local or vertex)", c.VectorSearch.Backend)
	}

	if c.VectorSearch.NeighborCount <= 0 {
		return fmt.Errorf("neighbor count must be positive")
	}

	if c.VectorSearch.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// Create the directory if it doesn't exist
	dir := filepath.Dir(c.Database.Path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	if err := checkDirectoryWritable(dir); err != nil {
		return fmt.Errorf("database directory: %w", err)
	}

	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("busy timeout must be positive")
	}

	if c.Database.ConnMaxLife <= 0 {
		return fmt.Errorf("connection max life must be positive")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList splits a separated variable, dropping blanks and commented entries
func getEnvList(key, sep string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, sep) {
		part = strings.TrimSpace(part)
		if part != "" && !strings.HasPrefix(part, "#") {
			out = append(out, part)
		}
	}
	return out
}

// getTimeFormat converts a named time format to its actual format string
func getTimeFormat(name string) string {
	switch name {
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "RFC822":
		return time.RFC822
	case "Kitchen":
		return time.Kitchen
	case "Stamp":
		return time.Stamp
	case "StampMilli":
		return time.StampMilli
	case "DateTime":
		return "2006-01-02 15:04:05"
	case "DateTimeMS":
		return "2006-01-02 15:04:05.000"
	default:
		return name
	}
}

// checkDirectoryWritable tests if a directory is writable
func checkDirectoryWritable(dir string) error {
	testFile := filepath.Join(dir, fmt.Sprintf("test_write_%d", time.Now().UnixNano()))
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}

	f.Close()
	os.Remove(testFile)

	return nil
}
