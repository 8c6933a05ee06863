package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// State backends accepted in STATE_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Gemini         GeminiConfig
	Redis          RedisConfig
	Port           string
	DBPath         string
	StateBackend   string
	AllowedOrigins []string
	DemoEmail      string
	DemoPassword   string
	MaxUploadBytes int64
	LogLevel       string
}

type GeminiConfig struct {
	APIKey            string
	Model             string
	ChatModel         string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads a .env file when present and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey:            strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:             os.Getenv("GEMINI_MODEL"),
			ChatModel:         os.Getenv("GEMINI_CHAT_MODEL"),
			BaseURL:           os.Getenv("GEMINI_BASE_URL"),
			Timeout:           getEnvDuration("GEMINI_TIMEOUT", 90*time.Second),
			RequestsPerSecond: getEnvFloat("GEMINI_RPS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Port:         getEnv("PORT", "2000"),
		DBPath:       getEnv("DB_PATH", "data/tenant-guardian.db"),
		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", BackendSQLite)),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS",
			"http://localhost:3000,http://127.0.0.1:3000")),
		DemoEmail:      getEnv("DEMO_EMAIL", "user@tenantguardian.ai"),
		DemoPassword:   getEnv("DEMO_PASSWORD", "password"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.StateBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		cfg.StateBackend = BackendSQLite
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
