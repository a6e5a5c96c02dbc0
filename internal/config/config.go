// Package config loads docmind's runtime configuration from the process
// environment, following the teacher repo's pattern of plain os.Getenv
// reads with defaults applied after parsing rather than a struct-tag
// binding library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EmbeddingConfig configures the embedding dispatcher (internal/embedding).
type EmbeddingConfig struct {
	Backend      string // "local", "remote", "deterministic", "none"
	BaseURL      string
	Path         string
	Model        string
	APIKey       string
	APIHeader    string
	Dimensions   int
	Timeout      time.Duration
	MaxConcurrent int
	MaxBatch     int
	MaxRetries   int
	RateLimitRPS float64
	MaxInputRunes int
}

// VectorConfig configures the Qdrant-backed vector index.
type VectorConfig struct {
	DSN        string
	Collection string
	Dimensions int
	Metric     string // cosine, l2, dot
}

// S3SSEConfig describes server-side encryption for the optional S3 snippet
// source.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", "sse-kms"
	KMSKeyID string
}

// S3Config configures the optional S3-backed snippet loader.
type S3Config struct {
	Bucket                string
	Region                string
	AccessKey             string
	SecretKey             string
	Endpoint              string
	UsePathStyle          bool
	Prefix                string
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// Config is the fully resolved, defaulted configuration for all docmind
// binaries. Individual cmd/ entry points read only the sections they need.
type Config struct {
	Mode string // "dev" or "container", from DOCMIND_MODE

	HelpSourcesDir string // HELP_SOURCES_DIR, falls back to HELP_SOURCE_BASE
	WorkDir        string

	IngestCachePath    string
	IngestCacheBackend string // "file" or "redis"
	RedisAddr          string
	CatalogPath        string

	IngestWorkers    int
	ArchiveUnpackCmd string

	Embedding EmbeddingConfig
	Vector    VectorConfig

	JournalPath     string
	JournalTTL      time.Duration
	PendingQueuePath string
	RingCapacity    int

	SnippetsDir string
	S3          S3Config
	UseS3Snippets bool

	MCPHTTPAddr string

	WatchArchiveInterval time.Duration
	WatchPendingInterval time.Duration

	KafkaBrokers string
	KafkaTopic   string
	UseKafka     bool

	ToolRPS   float64
	ToolBurst int

	LogLevel   string
	Production bool
	OTLPEndpoint string

	WebviewerAllowDir string
}

// firstNonEmpty returns the first non-blank value among the named
// environment variables, trimmed. It supports the repo's habit of
// accumulating multiple historical names for the same setting.
func firstNonEmpty(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationSeconds(name string, defSeconds int) time.Duration {
	return time.Duration(envInt(name, defSeconds)) * time.Second
}

// Load reads the process environment (optionally overlaid by a .env file)
// into a Config, applying the same defaults across every docmind binary.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	cfg.Mode = firstNonEmpty("DOCMIND_MODE")
	if cfg.Mode == "" {
		cfg.Mode = "dev"
	}

	cfg.HelpSourcesDir = firstNonEmpty("HELP_SOURCES_DIR", "HELP_SOURCE_BASE")
	cfg.WorkDir = firstNonEmpty("WORKDIR")
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}

	cfg.IngestCachePath = firstNonEmpty("INGEST_CACHE_PATH")
	if cfg.IngestCachePath == "" {
		if cfg.Mode == "container" {
			cfg.IngestCachePath = "/app/var/docmind/cache.json"
		} else {
			cfg.IngestCachePath = "/tmp/docmind/cache.json"
		}
	}
	cfg.IngestCacheBackend = firstNonEmpty("INGEST_CACHE_BACKEND")
	if cfg.IngestCacheBackend == "" {
		cfg.IngestCacheBackend = "file"
	}
	cfg.RedisAddr = firstNonEmpty("REDIS_ADDR", "REDIS_URL")
	cfg.CatalogPath = firstNonEmpty("CATALOG_PATH")
	if cfg.CatalogPath == "" {
		if cfg.Mode == "container" {
			cfg.CatalogPath = "/app/var/docmind/catalog.json"
		} else {
			cfg.CatalogPath = "/tmp/docmind/catalog.json"
		}
	}

	cfg.IngestWorkers = envInt("INGEST_WORKERS", 4)
	cfg.ArchiveUnpackCmd = firstNonEmpty("ARCHIVE_UNPACK_CMD")
	if cfg.ArchiveUnpackCmd == "" {
		cfg.ArchiveUnpackCmd = "unhbk"
	}

	cfg.Embedding = EmbeddingConfig{
		Backend:       firstNonEmpty("EMBEDDING_BACKEND"),
		BaseURL:       firstNonEmpty("EMBED_BASE_URL", "EMBED_API_BASE_URL"),
		Path:          firstNonEmpty("EMBED_PATH"),
		Model:         firstNonEmpty("EMBED_MODEL"),
		APIKey:        firstNonEmpty("EMBED_API_KEY"),
		APIHeader:     firstNonEmpty("EMBED_API_HEADER"),
		Dimensions:    envInt("EMBED_DIMENSIONS", 768),
		Timeout:       envDurationSeconds("EMBED_TIMEOUT", 30),
		MaxConcurrent: envInt("EMBEDDING_MAX_CONCURRENT", 4),
		MaxBatch:      envInt("EMBEDDING_MAX_BATCH", 64),
		MaxRetries:    envInt("EMBEDDING_MAX_RETRIES", 3),
		RateLimitRPS:  envFloat("EMBEDDING_RATE_LIMIT_RPS", 5),
		MaxInputRunes: envInt("EMBEDDING_MAX_INPUT_RUNES", 2000),
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "local"
	}
	if cfg.Embedding.Path == "" {
		cfg.Embedding.Path = "/v1/embeddings"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.APIHeader == "" {
		cfg.Embedding.APIHeader = "Authorization"
	}

	cfg.Vector = VectorConfig{
		DSN:        firstNonEmpty("VECTOR_DSN", "QDRANT_DSN"),
		Collection: firstNonEmpty("VECTOR_INDEX", "QDRANT_COLLECTION"),
		Dimensions: envInt("VECTOR_DIMENSIONS", cfg.Embedding.Dimensions),
		Metric:     firstNonEmpty("VECTOR_METRIC"),
	}
	if cfg.Vector.DSN == "" {
		cfg.Vector.DSN = "localhost:6334"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "docmind_topics"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}

	cfg.JournalPath = firstNonEmpty("MEMORY_JOURNAL_PATH")
	if cfg.JournalPath == "" {
		cfg.JournalPath = "/tmp/docmind/journal.ndjson"
	}
	cfg.JournalTTL = envDurationSeconds("MEMORY_JOURNAL_TTL_SECONDS", 7*24*3600)
	cfg.PendingQueuePath = firstNonEmpty("MEMORY_PENDING_QUEUE_PATH")
	if cfg.PendingQueuePath == "" {
		cfg.PendingQueuePath = "/tmp/docmind/pending.json"
	}
	cfg.RingCapacity = envInt("MEMORY_RING_CAPACITY", 200)

	cfg.SnippetsDir = firstNonEmpty("SNIPPETS_DIR")
	cfg.S3.Bucket = firstNonEmpty("SNIPPETS_S3_BUCKET")
	cfg.S3.Region = firstNonEmpty("SNIPPETS_S3_REGION", "AWS_REGION")
	cfg.S3.AccessKey = firstNonEmpty("SNIPPETS_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	cfg.S3.SecretKey = firstNonEmpty("SNIPPETS_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	cfg.S3.Endpoint = firstNonEmpty("SNIPPETS_S3_ENDPOINT")
	cfg.S3.UsePathStyle = envBool("SNIPPETS_S3_USE_PATH_STYLE", cfg.S3.Endpoint != "")
	cfg.S3.Prefix = firstNonEmpty("SNIPPETS_S3_PREFIX")
	cfg.UseS3Snippets = cfg.S3.Bucket != ""

	cfg.MCPHTTPAddr = firstNonEmpty("MCP_HTTP_ADDR")

	cfg.WatchArchiveInterval = envDurationSeconds("WATCH_ARCHIVE_INTERVAL_SECONDS", 600)
	cfg.WatchPendingInterval = envDurationSeconds("WATCH_PENDING_INTERVAL_SECONDS", 600)

	cfg.KafkaBrokers = firstNonEmpty("KAFKA_BROKERS", "KAFKA_BOOTSTRAP_SERVERS")
	cfg.KafkaTopic = firstNonEmpty("KAFKA_ARCHIVE_EVENTS_TOPIC")
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "docmind.archive-indexed"
	}
	cfg.UseKafka = cfg.KafkaBrokers != ""

	cfg.ToolRPS = envFloat("TOOLFACE_RATE_LIMIT_RPS", 10)
	cfg.ToolBurst = envInt("TOOLFACE_RATE_LIMIT_BURST", 20)

	cfg.LogLevel = firstNonEmpty("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Production = envBool("PRODUCTION", false)
	cfg.OTLPEndpoint = firstNonEmpty("OTEL_EXPORTER_OTLP_ENDPOINT", "OTLP_ENDPOINT")

	cfg.WebviewerAllowDir = firstNonEmpty("WEBVIEWER_ALLOW_DIR")

	return cfg, nil
}

// RequireHelpSourcesDir validates that the configured archive source
// directory is present, returning a safe error message if not. Called only
// by the binaries that actually need it (ingest, watch).
func (c Config) RequireHelpSourcesDir() error {
	if c.HelpSourcesDir == "" {
		return fmt.Errorf("HELP_SOURCES_DIR (or legacy HELP_SOURCE_BASE) is required")
	}
	info, err := os.Stat(c.HelpSourcesDir)
	if err != nil {
		return fmt.Errorf("help sources dir %q: %w", c.HelpSourcesDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("help sources dir %q is not a directory", c.HelpSourcesDir)
	}
	return nil
}
