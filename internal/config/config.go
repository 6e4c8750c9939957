// Package config loads runtime configuration from the process environment,
// with an optional .env file for local runs.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the pipeline binaries read from the
// environment. Per-binary flags may override the path fields.
type Config struct {
	// Corpus layout. ArtifactRoot and MergedRoot default to SourceRoot so a
	// single-directory corpus works with no configuration at all.
	SourceRoot   string
	ArtifactRoot string
	MergedRoot   string

	// Extraction.
	Engine         string   // remote | vertex | textlayer
	Endpoints      []string // remote engine URLs, one worker per endpoint
	Workers        int      // worker count for non-remote engines
	BatchSize      int      // documents per engine invocation
	PageBatchSize  int      // pages in flight inside one engine call
	BatchTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int

	// Vertex AI engine.
	ProjectID      string
	VertexAIRegion string
	VertexAIModel  string

	// Status server.
	StatusAddr string

	// Corpus intake. AWS keys are optional; when unset the default
	// credential chain applies.
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
	GCSBucket    string
	ManifestPath string
	KeepArchives bool
}

// Load reads .env when present, then the environment. Missing keys fall back
// to defaults; nothing here validates cross-field consistency, the binaries
// do that at startup.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "reason", err)
	}
	sourceRoot := GetEnv("CORPUS_SOURCE_ROOT", "corpus")
	artifactRoot := GetEnv("CORPUS_ARTIFACT_ROOT", sourceRoot)
	return &Config{
		SourceRoot:   sourceRoot,
		ArtifactRoot: artifactRoot,
		MergedRoot:   GetEnv("CORPUS_MERGED_ROOT", artifactRoot),

		Engine:         GetEnv("EXTRACT_ENGINE", "remote"),
		Endpoints:      GetEnvList("EXTRACT_ENDPOINTS", "http://localhost:8503"),
		Workers:        GetEnvInt("EXTRACT_WORKERS", 1),
		BatchSize:      GetEnvInt("EXTRACT_BATCH_SIZE", 10),
		PageBatchSize:  GetEnvInt("EXTRACT_PAGE_BATCH", 4),
		BatchTimeout:   GetEnvDuration("EXTRACT_BATCH_TIMEOUT", 30*time.Minute),
		RequestTimeout: GetEnvDuration("EXTRACT_REQUEST_TIMEOUT", 10*time.Minute),
		MaxRetries:     GetEnvInt("EXTRACT_MAX_RETRIES", 2),

		ProjectID:      GetEnv("PROJECT_ID", ""),
		VertexAIRegion: GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexAIModel:  GetEnv("VERTEX_AI_MODEL", "gemini-1.5-pro"),

		StatusAddr: GetEnv("STATUS_ADDR", ":8000"),

		S3Bucket:     GetEnv("ARXIV_S3_BUCKET", "arxiv"),
		S3Region:     GetEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey: GetEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: GetEnv("AWS_SECRET_ACCESS_KEY", ""),
		GCSBucket:    GetEnv("ARXIV_GCS_BUCKET", "arxiv-dataset"),
		ManifestPath: GetEnv("ARXIV_MANIFEST_PATH", "pdf/arXiv_pdf_manifest.xml"),
		KeepArchives: GetEnvBool("KEEP_ARCHIVES", false),
	}
}

// GetEnv retrieves an environment variable or returns a fallback value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt retrieves an integer environment variable or returns a fallback.
// Unparseable values are logged and fall back rather than aborting startup.
func GetEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using fallback", "key", key, "value", value)
		return fallback
	}
	return n
}

// GetEnvBool retrieves a boolean environment variable or returns a fallback.
func GetEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid boolean in environment, using fallback", "key", key, "value", value)
		return fallback
	}
	return b
}

// GetEnvDuration retrieves a duration ("30m", "600s") or returns a fallback.
// A bare integer is read as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using fallback", "key", key, "value", value)
		return fallback
	}
	return d
}

// GetEnvList retrieves a comma-separated list, trimming whitespace and
// dropping empty items.
func GetEnvList(key, fallback string) []string {
	raw := GetEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
