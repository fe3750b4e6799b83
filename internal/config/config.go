package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL    string // Consolidated DB Connection URL
	RedisURL       string
	OpenAIAPIKey   string
	NotionAPIKey   string
	NotionDatabase string
	ArxivBaseURL   string // override for tests
	NotionBaseURL  string // override for tests
}

// LoadConfig reads configuration from environment variables (.env file)
func LoadConfig() (*Config, error) {
	// Load .env file. In production, env variables are often set directly.
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env is not present, just log it
		// log.Printf("Warning: .env file not found, reading from environment")
	}

	return &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		NotionAPIKey:   getEnv("NOTION_API_KEY", ""),
		NotionDatabase: getEnv("NOTION_DATABASE_ID", ""),
		ArxivBaseURL:   getEnv("ARXIV_BASE_URL", ""),
		NotionBaseURL:  getEnv("NOTION_BASE_URL", ""),
	}, nil
}

// Helper function to get env var or return default
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
