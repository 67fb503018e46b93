package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server needs, loaded once at startup.
type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisURL string

	MeilisearchHost   string
	MeilisearchAPIKey string
	MeilisearchIndex  string

	OllamaURL       string
	EmbeddingModel  string
	JudgeModel      string
	EmbedTimeoutSec int
	JudgeTimeoutSec int
	JudgeMaxRPS     float64

	RetrievalTopK   int
	RRFK            float64
	CacheTTLSeconds int
	EmbedCacheSize  int
	EnableOTelLogs  bool
}

// Load reads configuration from the environment, with a best-effort .env
// bootstrap for local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "medrag-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "medrag_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "medrag_password"),
		DBName:     getEnv("DB_NAME", "medrag_db"),

		RedisURL: getEnv("REDIS_URL", "redis://medrag-cache:6379/0"),

		MeilisearchHost:   getEnv("MEILISEARCH_HOST", "http://medrag-search:7700"),
		MeilisearchAPIKey: getSecret("MEILISEARCH_API_KEY", "MEILISEARCH_API_KEY_FILE", ""),
		MeilisearchIndex:  getEnv("MEILISEARCH_INDEX", "medical_chunks"),

		OllamaURL:       getEnv("OLLAMA_URL", "http://ollama:11434"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		JudgeModel:      getEnv("JUDGE_MODEL", "llama3.1:8b"),
		EmbedTimeoutSec: getEnvInt("EMBED_TIMEOUT_SEC", 30),
		JudgeTimeoutSec: getEnvInt("JUDGE_TIMEOUT_SEC", 120),
		JudgeMaxRPS:     getEnvFloat("JUDGE_MAX_RPS", 0),

		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 10),
		RRFK:            getEnvFloat("RETRIEVAL_RRF_K", 60),
		CacheTTLSeconds: getEnvInt("RETRIEVAL_CACHE_TTL_SEC", 300),
		EmbedCacheSize:  getEnvInt("EMBED_CACHE_SIZE", 512),
		EnableOTelLogs:  getEnvBool("ENABLE_OTEL_LOGS", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
