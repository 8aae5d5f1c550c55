package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Storage
	StoreBackend  string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Text generation
	LLMProvider       string
	GeminiAPIKey      string
	GeminiModel       string
	BedrockModelID    string
	OpenAIAPIKey      string
	OpenAIModel       string
	LLMMaxTokens      int
	LLMTemperature    float64
	LLMTopP           float64
	GenerationTimeout time.Duration

	// Context window
	HistoryTurnLimit         int
	HistoryLineLimit         int
	PrescriptionExcerptChars int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ArchiveBucket       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		StoreBackend:  strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", BackendMemory))),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		LLMProvider:       strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderGemini))),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.3),
		LLMTopP:           getEnvAsFloat("LLM_TOP_P", 0),
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 30*time.Second),

		HistoryTurnLimit:         getEnvAsInt("HISTORY_TURN_LIMIT", 30),
		HistoryLineLimit:         getEnvAsInt("HISTORY_LINE_LIMIT", 60),
		PrescriptionExcerptChars: getEnvAsInt("PRESCRIPTION_EXCERPT_CHARS", 500),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
	}
}

// Validate reports configuration that would fail at wiring time.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.LLMProvider {
	case ProviderGemini:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderBedrock:
		if strings.TrimSpace(c.BedrockModelID) == "" {
			errs = append(errs, errors.New("BEDROCK_MODEL_ID is required for the bedrock provider"))
		}
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.HistoryTurnLimit <= 0 || c.HistoryLineLimit <= 0 {
		errs = append(errs, errors.New("history limits must be positive"))
	}
	if c.PrescriptionExcerptChars <= 0 {
		errs = append(errs, errors.New("PRESCRIPTION_EXCERPT_CHARS must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
