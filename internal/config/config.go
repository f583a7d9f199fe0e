// Package config builds service configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// ETL holds configuration for the ETL service.
type ETL struct {
	ListenAddr string

	MilvusHost string
	MilvusPort string
	Collection string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LLMServiceURL string

	EmbeddingDim int
	ChunkSize    int
	ChunkOverlap int
}

// LLM holds configuration for the companion LLM service.
type LLM struct {
	ListenAddr string

	OllamaHost     string
	ChatModel      string
	EmbeddingModel string
}

// LoadETL reads the ETL service configuration from the environment.
func LoadETL() *ETL {
	return &ETL{
		ListenAddr:     getEnvWithDefault("ETL_LISTEN_ADDR", ":8001"),
		MilvusHost:     getEnvWithDefault("MILVUS_HOST", "milvus"),
		MilvusPort:     getEnvWithDefault("MILVUS_PORT", "19530"),
		Collection:     getEnvWithDefault("MILVUS_COLLECTION", "document_chunks"),
		MinioEndpoint:  getEnvWithDefault("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey: getEnvWithDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnvWithDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnvWithDefault("MINIO_BUCKET", "documents"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		LLMServiceURL:  getEnvWithDefault("LLM_SERVICE_URL", "http://localhost:8002"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 1024),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 512),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 64),
	}
}

// MilvusAddr joins host and port for the Milvus client.
func (c *ETL) MilvusAddr() string {
	return c.MilvusHost + ":" + c.MilvusPort
}

// LoadLLM reads the LLM service configuration from the environment.
func LoadLLM() *LLM {
	return &LLM{
		ListenAddr:     getEnvWithDefault("LLM_LISTEN_ADDR", ":8002"),
		OllamaHost:     getEnvWithDefault("OLLAMA_HOST", "http://localhost:11434"),
		ChatModel:      getEnvWithDefault("LLM_MODEL", "qwen2.5:7b"),
		EmbeddingModel: getEnvWithDefault("EMBEDDING_MODEL", "nomic-embed-text"),
	}
}

// getEnvWithDefault gets an environment variable or returns a default value.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
