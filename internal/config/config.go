package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Postgres struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

type Config struct {
	Port             string
	LogLevel         string
	ModelPath        string
	JWTPublicKeyPath string
	RedisAddr        string
	RedisPassword    string
	RetentionDays    int
	RetentionCron    string
	Postgres         Postgres
}

func Load() Config {
	// Same convenience the original dashboard had: a .env next to the binary
	// wins over nothing, real environment wins over the file.
	_ = godotenv.Load()

	cfg := Config{
		Port:             getenv("JEMURAN_SERVICE_PORT", "8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		ModelPath:        getenv("JEMURAN_MODEL_PATH", "model/jemuran_artifact.json"),
		JWTPublicKeyPath: getenv("JWT_PUBLIC_KEY_PATH", ""),
		RedisAddr:        getenv("REDIS_ADDR", ""),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RetentionDays:    getenvInt("JEMURAN_RETENTION_DAYS", 0),
		RetentionCron:    getenv("JEMURAN_RETENTION_CRON", "0 3 * * *"),
		Postgres: Postgres{
			User:     getenv("POSTGRES_USER", ""),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getenv("POSTGRES_DB", ""),
			Host:     getenv("POSTGRES_HOST", ""),
			Port:     getenv("POSTGRES_PORT", ""),
			SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		},
	}

	slog.Info("config loaded", "port", cfg.Port, "model_path", cfg.ModelPath, "redis", cfg.RedisAddr != "")
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
