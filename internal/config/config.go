package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Telegram   TelegramConfig
	SMTP       SMTPConfig
	Resilience ResilienceConfig
	Ai         AIConfig
}

type AppConfig struct {
	Port          string
	BaseURL       string
	Environment   string
	LogFilePath   string
	NatsURL       string
	RedisURL      string
	DocServiceURL string
}

type DatabaseConfig struct {
	Connection string
}

type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
}

type SMTPConfig struct {
	Host          string
	Port          int
	Email         string
	Password      string
	SenderName    string
	OperatorEmail string
}

// ResilienceConfig holds the per-deployment tunables; breaker and
// retry presets per dependency class stay in code.
type ResilienceConfig struct {
	SessionLockTTLSeconds     int
	SessionLockMaxWaitSeconds int
	SessionCacheTTLMinutes    int
	DLQMaxAttempts            int
}

type AIConfig struct {
	Provider       string // "ollama" or "huggingface"
	Model          string
	BaseURL        string
	ApiKey         string
	BackupProvider string // empty disables the secondary strategy
	BackupModel    string
	BackupBaseURL  string
	BackupApiKey   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:          getEnv("APP_PORT", "3000"),
			BaseURL:       getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:   getEnv("GO_ENV", "development"),
			LogFilePath:   getEnv("LOG_FILE_PATH", "app.log.csv"),
			NatsURL:       getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			DocServiceURL: getEnv("DOC_SERVICE_URL", "http://localhost:8090"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		SMTP: SMTPConfig{
			Host:          getEnv("SMTP_HOST", ""),
			Port:          getEnvAsInt("SMTP_PORT", 587),
			Email:         getEnv("SMTP_EMAIL", ""),
			Password:      getEnv("SMTP_PASSWORD", ""),
			SenderName:    getEnv("SMTP_SENDER_NAME", "Invoice Collector"),
			OperatorEmail: getEnv("OPERATOR_EMAIL", ""),
		},
		Resilience: ResilienceConfig{
			SessionLockTTLSeconds:     getEnvAsInt("SESSION_LOCK_TTL_SECONDS", 10),
			SessionLockMaxWaitSeconds: getEnvAsInt("SESSION_LOCK_MAX_WAIT_SECONDS", 5),
			SessionCacheTTLMinutes:    getEnvAsInt("SESSION_CACHE_TTL_MINUTES", 30),
			DLQMaxAttempts:            getEnvAsInt("DLQ_MAX_ATTEMPTS", 5),
		},
		Ai: AIConfig{
			Provider:       getEnv("LLM_PROVIDER", "ollama"),
			Model:          getEnv("LLM_MODEL", "llama3"),
			BaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
			ApiKey:         getEnv("LLM_API_KEY", ""),
			BackupProvider: getEnv("LLM_BACKUP_PROVIDER", ""),
			BackupModel:    getEnv("LLM_BACKUP_MODEL", ""),
			BackupBaseURL:  getEnv("LLM_BACKUP_BASE_URL", ""),
			BackupApiKey:   getEnv("LLM_BACKUP_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
