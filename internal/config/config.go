package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port string

	// LINE Messaging API
	LineChannelAccessToken string
	LineChannelSecret      string
	LineAPIBaseURL         string // https://api.line.me
	LineDataBaseURL        string // https://api-data.line.me (message content downloads)

	// OpenAI-compatible provider
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	VisionModel   string
	ImageModel    string
	ImageSize     string
	PersonaPrompt string // empty selects the built-in persona

	// Web search
	SearXNGURL string

	// Generated image hosting
	PublicBaseURL  string // external base URL for serving generated images
	ImageDir       string
	ImageRetention time.Duration

	// Session memory
	SessionTTL      time.Duration
	SessionMaxTurns int

	// Usage quota
	FreeDailyLimit int

	// Optional shared state backend
	RedisURL string

	// Classifier keyword rules (optional YAML override, hot-reloaded)
	IntentsFile string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3000"),

		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineAPIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		LineDataBaseURL:        getEnv("LINE_DATA_BASE_URL", "https://api-data.line.me"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:     getEnv("CHAT_MODEL", "gpt-4.1-mini"),
		VisionModel:   getEnv("VISION_MODEL", "gpt-4.1-mini"),
		ImageModel:    getEnv("IMAGE_MODEL", "gpt-image-1"),
		ImageSize:     getEnv("IMAGE_SIZE", "1024x1024"),
		PersonaPrompt: getEnv("PERSONA_PROMPT", ""),

		SearXNGURL: getEnv("SEARXNG_URL", "http://localhost:8080"),

		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		ImageDir:       getEnv("IMAGE_DIR", "./data/images"),
		ImageRetention: getDurationEnv("IMAGE_RETENTION", 7*24*time.Hour),

		SessionTTL:      getDurationEnv("SESSION_TTL", 20*time.Minute),
		SessionMaxTurns: getIntEnv("SESSION_MAX_TURNS", 20),

		FreeDailyLimit: getIntEnv("FREE_DAILY_LIMIT", 20),

		RedisURL: getEnv("REDIS_URL", ""),

		IntentsFile: getEnv("INTENTS_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
