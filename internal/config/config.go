// Package config loads service configuration from YAML, .env files and
// environment variables.
//
// Secrets never live in the YAML file. The file names the environment
// variables that hold them, and Secrets resolves those at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingConfig is returned when a required credential is absent
	ErrMissingConfig = errors.New("missing required configuration")
	// ErrInvalidConfig is returned when a configured value is out of range
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Vector index backends
const (
	BackendPinecone = "pinecone"
	BackendSQLite   = "sqlite"
)

// Defaults
const (
	DefaultAddr           = ":8000"
	DefaultCacheIndex     = "semantic-cache-jina-api"
	DefaultDocumentIndex  = "airac-knowledge-base"
	DefaultThreshold      = 0.95
	DefaultSQLitePath     = "~/.airac/airac.db"
	DefaultIngestSource   = "json_data/parent.json"
	DefaultJinaKeyEnv     = "JINA_API_KEY"
	DefaultOpenAIKeyEnv   = "OPENAI_API_KEY"
	DefaultPineconeKeyEnv = "PINECONE_API_KEY"
	DefaultGoogleKeysEnv  = "GOOGLE_API_KEYS"
	DefaultGoogleKeyEnv   = "GOOGLE_API_KEY"
)

// ServerConfig configures the HTTP front door
type ServerConfig struct {
	Addr               string   `yaml:"addr"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs"`
}

// EmbedderConfig selects and configures the embedding provider
type EmbedderConfig struct {
	Provider    string `yaml:"provider"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Task        string `yaml:"task"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	CacheSize   int    `yaml:"cache_size"`
}

// PineconeConfig contains connection details for Pinecone
type PineconeConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	ControlURL  string `yaml:"control_url"`
	Cloud       string `yaml:"cloud"`
	Region      string `yaml:"region"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorIndexConfig selects the vector index backend. Both the document
// index and the cache index live on the same backend.
type VectorIndexConfig struct {
	Backend       string         `yaml:"backend"`
	DocumentIndex string         `yaml:"document_index"`
	SQLitePath    string         `yaml:"sqlite_path"`
	Pinecone      PineconeConfig `yaml:"pinecone"`
}

// CacheConfig configures the semantic cache
type CacheConfig struct {
	Index     string  `yaml:"index"`
	Threshold float64 `yaml:"threshold"`
}

// GeneratorConfig configures answer generation
type GeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeysEnv  string `yaml:"api_keys_env"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IngestConfig configures offline ingestion
type IngestConfig struct {
	Source            string  `yaml:"source"`
	BatchSize         int     `yaml:"batch_size"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	ChunkSize         int     `yaml:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Cache       CacheConfig       `yaml:"cache"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads the config at path, applies defaults and then environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Save writes the config to path, creating directories as needed
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 90
	}

	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "jina"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		switch cfg.Embedder.Provider {
		case "openai":
			cfg.Embedder.APIKeyEnv = DefaultOpenAIKeyEnv
		default:
			cfg.Embedder.APIKeyEnv = DefaultJinaKeyEnv
		}
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = 10000
	}

	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = BackendPinecone
	}
	if cfg.VectorIndex.DocumentIndex == "" {
		cfg.VectorIndex.DocumentIndex = DefaultDocumentIndex
	}
	if cfg.VectorIndex.SQLitePath == "" {
		cfg.VectorIndex.SQLitePath = DefaultSQLitePath
	}
	if cfg.VectorIndex.Pinecone.APIKeyEnv == "" {
		cfg.VectorIndex.Pinecone.APIKeyEnv = DefaultPineconeKeyEnv
	}
	if cfg.VectorIndex.Pinecone.TimeoutSecs == 0 {
		cfg.VectorIndex.Pinecone.TimeoutSecs = 15
	}

	if cfg.Cache.Index == "" {
		cfg.Cache.Index = DefaultCacheIndex
	}
	if cfg.Cache.Threshold == 0 {
		cfg.Cache.Threshold = DefaultThreshold
	}

	if cfg.Generator.APIKeysEnv == "" {
		cfg.Generator.APIKeysEnv = DefaultGoogleKeysEnv
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = DefaultGoogleKeyEnv
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}

	if cfg.Ingest.Source == "" {
		cfg.Ingest.Source = DefaultIngestSource
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 50
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.RequestsPerSecond == 0 {
		cfg.Ingest.RequestsPerSecond = 5
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 80
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnvOverrides lets the environment win over the file
func applyEnvOverrides(cfg *Config) error {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&cfg.Server.Addr, "AIRAC_ADDR")
	override(&cfg.Logging.Level, "AIRAC_LOG_LEVEL")
	override(&cfg.Embedder.Provider, "AIRAC_EMBEDDING_PROVIDER")
	override(&cfg.VectorIndex.Backend, "AIRAC_VECTOR_BACKEND")
	override(&cfg.VectorIndex.SQLitePath, "AIRAC_SQLITE_PATH")
	override(&cfg.VectorIndex.DocumentIndex, "PINECONE_INDEX_NAME")
	override(&cfg.VectorIndex.Pinecone.Cloud, "PINECONE_CLOUD")
	override(&cfg.VectorIndex.Pinecone.Region, "PINECONE_REGION")
	override(&cfg.Cache.Index, "AIRAC_CACHE_INDEX")
	override(&cfg.Generator.Model, "AIRAC_GENERATION_MODEL")

	if v := strings.TrimSpace(os.Getenv("AIRAC_CACHE_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: AIRAC_CACHE_THRESHOLD %q is not a number", ErrInvalidConfig, v)
		}
		cfg.Cache.Threshold = f
	}
	return nil
}

// Validate checks enumerations and ranges. Credentials are checked
// separately by Secrets.
func (c *Config) Validate() error {
	switch c.Embedder.Provider {
	case "jina", "openai", "local":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedder.Provider)
	}
	switch c.VectorIndex.Backend {
	case BackendPinecone, BackendSQLite:
	default:
		return fmt.Errorf("%w: unknown vector backend %q", ErrInvalidConfig, c.VectorIndex.Backend)
	}
	if c.Embedder.Dimension < 0 {
		return fmt.Errorf("%w: embedder dimension must be positive", ErrInvalidConfig)
	}
	if c.Cache.Threshold <= 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("%w: cache threshold %v outside (0, 1]", ErrInvalidConfig, c.Cache.Threshold)
	}
	if c.Cache.Index == c.VectorIndex.DocumentIndex {
		return fmt.Errorf("%w: cache and document index must differ", ErrInvalidConfig)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// RequestTimeout returns the per-request pipeline bound
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Seconds converts a seconds setting to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
