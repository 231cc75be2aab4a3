package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port    string
	Env     string
	LogMode string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI; an empty key selects the sample question generator
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Emotion detection
	EmotionSampleInterval time.Duration
	EmotionSimulatorSeed  int64

	// Idle learners are dropped from memory after this long
	LearnerIdleTTL time.Duration

	// Storage
	StoragePath    string
	MaxUploadBytes int64

	// Workers
	WorkerCount int

	// Streak calendar days are counted in this zone
	StudyTimezone *time.Location

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LogMode:               getEnvOrDefault("LOG_MODE", "dev"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		EmotionSampleInterval: getEnvAsDurationOrDefault("EMOTION_SAMPLE_INTERVAL", 3*time.Second),
		EmotionSimulatorSeed:  int64(getEnvAsIntOrDefault("EMOTION_SIMULATOR_SEED", 0)),
		LearnerIdleTTL:        getEnvAsDurationOrDefault("LEARNER_IDLE_TTL", 30*time.Minute),
		StoragePath:           getEnvOrDefault("STORAGE_PATH", "./uploads"),
		MaxUploadBytes:        int64(getEnvAsIntOrDefault("MAX_UPLOAD_BYTES", 20<<20)),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 3),
		StudyTimezone:         mustLoadLocation(getEnvOrDefault("STUDY_TIMEZONE", "UTC")),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go duration strings ("3s", "500ms").
// Non-positive values fall back to the default.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("invalid STUDY_TIMEZONE %q: %v", name, err))
	}
	return loc
}
