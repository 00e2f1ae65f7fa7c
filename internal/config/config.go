package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string

	LoopsTable        string
	SideWriteQueueURL string
	ArchiveBucket     string

	OpinionsPath string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Relational tuning. Thresholds and delta coefficients are deployment
	// configuration, not hard-coded invariants; two tuned variants of the
	// tier table exist in the wild.
	TierAdversarialMax     float64 // at or below this score the tier is adversarial
	TierNeutralNegativeMax float64
	TierFriendMin          float64
	TierCloseFriendMin     float64
	TierDeeplyLovingMin    float64

	ClassifierTimeout time.Duration
	MinSurfaceGap     time.Duration
	IntimacyStateTTL  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-haiku-20241022-v1:0"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		LoopsTable:        getEnv("LOOPS_TABLE", "rapport-open-loops"),
		SideWriteQueueURL: getEnv("SIDE_WRITE_QUEUE_URL", ""),
		ArchiveBucket:     getEnv("ARCHIVE_BUCKET", ""),

		OpinionsPath: getEnv("OPINIONS_PATH", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 0),

		TierAdversarialMax:     getEnvAsFloat("TIER_ADVERSARIAL_MAX", -50),
		TierNeutralNegativeMax: getEnvAsFloat("TIER_NEUTRAL_NEGATIVE_MAX", -10),
		TierFriendMin:          getEnvAsFloat("TIER_FRIEND_MIN", 10),
		TierCloseFriendMin:     getEnvAsFloat("TIER_CLOSE_FRIEND_MIN", 50),
		TierDeeplyLovingMin:    getEnvAsFloat("TIER_DEEPLY_LOVING_MIN", 75),

		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 8*time.Second),
		MinSurfaceGap:     getEnvAsDuration("MIN_SURFACE_GAP", 4*time.Hour),
		IntimacyStateTTL:  getEnvAsDuration("INTIMACY_STATE_TTL", 14*24*time.Hour),
	}
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
