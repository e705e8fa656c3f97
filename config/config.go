package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	OpenAIAPIKey    string
	AnthropicAPIKey string

	PineconeAPIKey    string
	PineconeIndexName string

	TemplatesDir string

	Model ModelConfig
}

// ModelConfig selects and tunes the completion backend used by the interviewer.
type ModelConfig struct {
	Provider    string
	Endpoint    string
	Name        string
	Temperature float64
	TimeoutMs   int
	MaxRetries  int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] No .env file loaded: %v", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DB_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		PineconeAPIKey:    os.Getenv("PINECONE_API_KEY"),
		PineconeIndexName: getEnv("PINECONE_INDEX_NAME", "interview-rubrics-index"),
		TemplatesDir:      os.Getenv("TEMPLATES_DIR"),
		Model: ModelConfig{
			Provider:    strings.ToLower(getEnv("MODEL_PROVIDER", "ollama")),
			Endpoint:    firstNonEmpty(os.Getenv("MODEL_ENDPOINT"), os.Getenv("OLLAMA_URL")),
			Name:        getEnv("MODEL_NAME", "llama3"),
			Temperature: getFloatEnv("MODEL_TEMPERATURE", 0.7),
			TimeoutMs:   getIntEnv("MODEL_TIMEOUT_MS", 30000),
			MaxRetries:  getIntEnv("MODEL_MAX_RETRIES", 2),
		},
	}

	return cfg
}

// APIKeyForProvider returns the credential the configured model provider needs.
func (c *Config) APIKeyForProvider() string {
	switch c.Model.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[WARN] Invalid integer for %s: %q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getFloatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("[WARN] Invalid float for %s: %q, using %.2f", key, raw, fallback)
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
