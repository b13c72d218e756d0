package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Memory   MemoryConfig
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	EmbedTopic         string
}

type DatabaseConfig struct {
	Connection string
}

// MemoryConfig tunes the context memory pipeline.
type MemoryConfig struct {
	MaxChunkSize        int
	ChunkOverlap        int
	EmbedBatchSize      int
	TargetDim           int
	NormalizerMode      string // "pooling" or "projection"
	SimilarityThreshold float64
	SimilarLimit        int
	RecentLimit         int
	FileLimit           int
	TimeWindowDays      int
	OrphanSweepMinutes  int
}

type AIConfig struct {
	EmbeddingProvider string // "azure" or "ollama"
	OllamaBaseURL     string
	OllamaEmbedModel  string
	LLMProvider       string // "ollama" or "azure"
	LLMModel          string

	AzureEndpoint        string
	AzureAPIKey          string
	AzureAPIVersion      string
	AzureEmbedDeployment string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			EmbedTopic:         getEnv("EMBED_DOCUMENT_TOPIC_NAME", "EMBED_DOCUMENT"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Memory: MemoryConfig{
			MaxChunkSize:        getEnvAsInt("MEMORY_MAX_CHUNK_SIZE", 1000),
			ChunkOverlap:        getEnvAsInt("MEMORY_CHUNK_OVERLAP", 100),
			EmbedBatchSize:      getEnvAsInt("MEMORY_EMBED_BATCH_SIZE", 16),
			TargetDim:           getEnvAsInt("MEMORY_TARGET_DIM", 256),
			NormalizerMode:      getEnv("MEMORY_NORMALIZER_MODE", "pooling"),
			SimilarityThreshold: getEnvAsFloat("MEMORY_SIMILARITY_THRESHOLD", 0.35),
			SimilarLimit:        getEnvAsInt("MEMORY_SIMILAR_LIMIT", 5),
			RecentLimit:         getEnvAsInt("MEMORY_RECENT_LIMIT", 5),
			FileLimit:           getEnvAsInt("MEMORY_FILE_LIMIT", 3),
			TimeWindowDays:      getEnvAsInt("MEMORY_TIME_WINDOW_DAYS", 30),
			OrphanSweepMinutes:  getEnvAsInt("MEMORY_ORPHAN_SWEEP_MINUTES", 10),
		},
		Ai: AIConfig{
			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:     getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:          getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:             getEnv("LLM_MODEL", "llama3"),
			AzureEndpoint:        getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureAPIKey:          getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureAPIVersion:      getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
			AzureEmbedDeployment: getEnv("AZURE_OPENAI_EMBED_DEPLOYMENT", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
