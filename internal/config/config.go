package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	StoreDriver string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisURL    string
	JWTSecret   string
	LogLevel    string

	// Generation service (OpenAI-compatible chat completions)
	GenAIBaseURL string
	GenAIAPIKey  string
	GenAIModel   string
	GenAITimeout time.Duration

	// Bot participant
	BotEmailSuffix     string
	BotMaxRetries      int
	BotRetryDelay      time.Duration
	BotHistoryLimit    int
	BotMaxOutputTokens int

	// Realtime gateway
	WSStrictMembership bool
	WSEventsPerSecond  float64
	WSEventBurst       int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "chatwave"),
		DBPassword:  getEnv("DB_PASSWORD", "chatwave_dev_password"),
		DBName:      getEnv("DB_NAME", "chatwave"),
		RedisURL:    getEnv("REDIS_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GenAIBaseURL: getEnv("GENAI_BASE_URL", "https://api.openai.com/v1"),
		GenAIAPIKey:  getEnv("GENAI_API_KEY", ""),
		GenAIModel:   getEnv("GENAI_MODEL", "gpt-4o-mini"),
		GenAITimeout: getEnvDuration("GENAI_TIMEOUT", 30*time.Second),

		BotEmailSuffix:     getEnv("BOT_EMAIL_SUFFIX", "bot"),
		BotMaxRetries:      getEnvInt("BOT_MAX_RETRIES", 3),
		BotRetryDelay:      getEnvDuration("BOT_RETRY_DELAY", 3*time.Second),
		BotHistoryLimit:    getEnvInt("BOT_HISTORY_LIMIT", 20),
		BotMaxOutputTokens: getEnvInt("BOT_MAX_OUTPUT_TOKENS", 2000),

		WSStrictMembership: getEnvBool("WS_STRICT_MEMBERSHIP", false),
		WSEventsPerSecond:  getEnvFloat("WS_EVENTS_PER_SECOND", 20),
		WSEventBurst:       getEnvInt("WS_EVENT_BURST", 40),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
