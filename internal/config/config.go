package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL"`
	ChatModel      string `envconfig:"CHAT_MODEL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"notebase-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Retrieval defaults. Query and dedup thresholds are deliberately
	// separate knobs; callers can override both per request.
	TopK                int     `envconfig:"TOP_K" default:"5"`
	QueryScoreThreshold float32 `envconfig:"QUERY_SCORE_THRESHOLD" default:"0.3"`
	DedupScoreThreshold float32 `envconfig:"DEDUP_SCORE_THRESHOLD" default:"0.7"`
	BaselineConfidence  float32 `envconfig:"BASELINE_CONFIDENCE" default:"0.1"`

	ChunkMaxChars int `envconfig:"CHUNK_MAX_CHARS" default:"2000"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"200"`

	MemoryMaxTurns   int           `envconfig:"MEMORY_MAX_TURNS" default:"20"`
	MemoryWindow     int           `envconfig:"MEMORY_WINDOW" default:"6"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionSweepTick time.Duration `envconfig:"SESSION_SWEEP_TICK" default:"5m"`

	EmbedTimeout    time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"120s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("NOTEBASE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
