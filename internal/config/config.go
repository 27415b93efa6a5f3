package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"adaptive-backend/internal/adaptive"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	MigrationsDir string

	// Redis (optional)
	RedisURL string

	// JWT
	JWTSecret string

	// Frontend
	FrontendURL string

	RecommendationCacheTTLSeconds int
	AttemptRateLimitPerMin        int

	// Adaptive policy
	HighScorePercent float64
	LowScorePercent  float64
	StreakLength     int
	TrendBand        float64
	BeginnerCeiling  float64
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	defaults := adaptive.DefaultPolicy()

	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		Env:           getEnvOrDefault("ENV", "development"),
		StoreDriver:   strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverSQLite)),
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", "adaptive.db"),
		MigrationsDir: getEnvOrDefault("MIGRATIONS_DIR", ""),
		RedisURL:      getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:     mustGetEnv("JWT_SECRET"),
		FrontendURL:   getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),

		RecommendationCacheTTLSeconds: getEnvAsIntOrDefault("RECOMMENDATION_CACHE_TTL_SECONDS", 300),
		AttemptRateLimitPerMin:        getEnvAsIntOrDefault("ATTEMPT_RATE_LIMIT_PER_MIN", 60),

		HighScorePercent: getEnvAsFloatOrDefault("POLICY_HIGH_SCORE_PERCENT", defaults.HighScorePercent),
		LowScorePercent:  getEnvAsFloatOrDefault("POLICY_LOW_SCORE_PERCENT", defaults.LowScorePercent),
		StreakLength:     getEnvAsIntOrDefault("POLICY_STREAK_LENGTH", defaults.StreakLength),
		TrendBand:        getEnvAsFloatOrDefault("POLICY_TREND_BAND", defaults.TrendBand),
		BeginnerCeiling:  getEnvAsFloatOrDefault("POLICY_BEGINNER_CEILING", defaults.BeginnerCeiling),
	}

	if cfg.StoreDriver == StoreDriverPostgres {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	return cfg
}

// Policy returns the adaptive thresholds, failing when they are inconsistent.
func (c *Config) Policy() (adaptive.Policy, error) {
	p := adaptive.Policy{
		HighScorePercent: c.HighScorePercent,
		LowScorePercent:  c.LowScorePercent,
		StreakLength:     c.StreakLength,
		TrendBand:        c.TrendBand,
		BeginnerCeiling:  c.BeginnerCeiling,
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid adaptive policy: %w", err)
	}
	return p, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
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

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
