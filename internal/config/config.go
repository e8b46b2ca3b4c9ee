package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProfileStorePGVector = "pgvector"
	ProfileStoreQdrant   = "qdrant"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Pipeline PipelineConfig
	Recorder RecorderConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	MaxResults int
}

type GeminiConfig struct {
	APIKey              string
	Model               string
	AvailableModels     []string
	EmbedModel          string
	EmbeddingDimensions int
	EmbeddingCacheTTL   time.Duration
	// MaxRetries is the number of attempts per generation call.
	MaxRetries int
}

// PipelineConfig holds the knobs fixed at startup. None of them can be
// overridden per request.
type PipelineConfig struct {
	MaxFileSize         int64
	AllowedMimeTypes    []string
	SimilarityThreshold float64
	ProfileStore        string
}

type RecorderConfig struct {
	Concurrency int
	QueueSize   int
}

type LogConfig struct {
	FilePath string
	JSON     bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "3000"),
			Env:            getEnv("ENV", "development"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", "2m"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "techmatch"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "1h"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6334"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "employee_profiles_techmatch"),
			MaxResults: getEnvAsInt("QDRANT_MAX_RESULTS", 1000),
		},
		Gemini: GeminiConfig{
			APIKey:              getEnv("GEMINI_API_KEY", ""),
			Model:               getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
			AvailableModels:     getEnvAsList("GEMINI_AVAILABLE_MODELS", "gemini-2.5-flash-lite,gemini-2.5-flash,gemini-2.5-pro"),
			EmbedModel:          getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			EmbeddingCacheTTL:   getEnvAsDuration("EMBEDDING_CACHE_TTL", "10m"),
			MaxRetries:          getEnvAsInt("GEMINI_MAX_RETRIES", 2),
		},
		Pipeline: PipelineConfig{
			MaxFileSize:         getEnvAsInt64("MAX_FILE_SIZE", 5*1024*1024),
			AllowedMimeTypes:    getEnvAsList("ALLOWED_MIME_TYPES", "application/pdf"),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.62),
			ProfileStore:        strings.ToLower(getEnv("PROFILE_STORE", ProfileStorePGVector)),
		},
		Recorder: RecorderConfig{
			Concurrency: getEnvAsInt("RECORDER_CONCURRENCY", 2),
			QueueSize:   getEnvAsInt("RECORDER_QUEUE_SIZE", 100),
		},
		Log: LogConfig{
			FilePath: getEnv("LOG_FILE_PATH", "logs/techmatch.log"),
			JSON:     getEnvAsBool("LOG_JSON", false),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue string) []string {
	var values []string
	for _, v := range strings.Split(getEnv(key, defaultValue), ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
