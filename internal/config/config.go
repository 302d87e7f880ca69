package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the agent needs. It is constructed once in cmd
// and passed down explicitly; packages never read the environment themselves.
type Config struct {
	// Ollama endpoints and models.
	OllamaBaseURL string
	ChatModel     string
	EmbedModel    string
	// EmbedDim is the dense vector dimensionality of EmbedModel.
	EmbedDim int

	// Retrieval tuning.
	TopKRetrieval int // candidates fetched per signal before fusion
	TopKRerank    int // final results after reranking

	// Indexing limits.
	MaxFileSize int64

	// Agent behavior.
	HealMaxCycles int
	RecentWindow  int // raw conversational turns kept verbatim
	CloneTimeout  time.Duration
	RunTimeout    time.Duration // subprocess bound during self-heal
}

// Load reads .env (if present) and the environment, falling back to defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		OllamaBaseURL: getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		ChatModel:     getenv("OLLAMA_MODEL", "qwen2.5:7b-instruct-q4_0"),
		EmbedModel:    getenv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		EmbedDim:      getenvInt("EMBED_DIM", 768),
		TopKRetrieval: getenvInt("TOP_K_RETRIEVAL", 20),
		TopKRerank:    getenvInt("TOP_K_RERANK", 5),
		MaxFileSize:   int64(getenvInt("MAX_FILE_SIZE", 1_000_000)),
		HealMaxCycles: getenvInt("HEAL_MAX_CYCLES", 5),
		RecentWindow:  getenvInt("RECENT_WINDOW", 2),
		CloneTimeout:  time.Duration(getenvInt("CLONE_TIMEOUT_SECONDS", 120)) * time.Second,
		RunTimeout:    time.Duration(getenvInt("RUN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
