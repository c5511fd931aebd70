// Package config loads service configuration from the environment, with a
// .env file honored in local development.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/knoxlab/docquery/internal/embedding"
	"github.com/knoxlab/docquery/internal/retrieve"
	"github.com/knoxlab/docquery/internal/segment"
)

// Config is the full runtime configuration. Zero-config defaults work for
// local development against a localhost Qdrant; only the embedding API key is
// mandatory.
type Config struct {
	// Vector engine.
	QdrantHost string
	QdrantPort int
	Collection string

	// Embedding service.
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingBatch   int

	// Durable state.
	DBPath    string
	UploadDir string

	// Policy parameters.
	Segmenter segment.Config
	Retrieval retrieve.Options

	// Serving.
	Port       string
	ServerMode bool // HTTP when true, stdio otherwise
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		QdrantHost: getEnv("QDRANT_HOST", "localhost"),
		QdrantPort: getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnv("QDRANT_COLLECTION", "docquery_segments"),

		EmbeddingAPIKey:  os.Getenv("OPENAI_API_KEY"),
		EmbeddingBaseURL: os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", embedding.DefaultModel),
		EmbeddingBatch:   getEnvInt("EMBEDDING_BATCH_SIZE", embedding.DefaultBatchSize),

		DBPath:    getEnv("DB_PATH", "docquery.db"),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),

		Segmenter: segment.Config{
			MaxSegmentLength:   getEnvInt("MAX_SEGMENT_LENGTH", 500),
			OverlapLength:      getEnvInt("OVERLAP_LENGTH", 50),
			MinSegmentLength:   getEnvInt("MIN_SEGMENT_LENGTH", 100),
			MaxSegmentsPerPage: getEnvInt("MAX_SEGMENTS_PER_PAGE", 100),
		},
		Retrieval: retrieve.Options{
			TopK:            getEnvInt("RETRIEVAL_TOP_K", 3),
			VectorWeight:    getEnvFloat("RETRIEVAL_VECTOR_WEIGHT", 0.6),
			LexicalWeight:   getEnvFloat("RETRIEVAL_LEXICAL_WEIGHT", 0.4),
			ScoreThreshold:  getEnvFloat("RETRIEVAL_SCORE_THRESHOLD", 0.4),
			OverfetchFactor: getEnvInt("RETRIEVAL_OVERFETCH_FACTOR", 10),
			MaxFetch:        getEnvInt("RETRIEVAL_MAX_FETCH", 100),
		},

		Port:       getEnv("PORT", "8080"),
		ServerMode: getEnv("SERVER_MODE", "false") == "true",
	}

	if cfg.EmbeddingAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if err := cfg.Segmenter.Validate(); err != nil {
		return nil, fmt.Errorf("segmenter configuration: %w", err)
	}
	if err := cfg.Retrieval.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}
