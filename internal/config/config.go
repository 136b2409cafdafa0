package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port string

	// Store backend: "postgres" or "file".
	StoreBackend string
	DatabaseURL  string
	StoreFile    string

	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string

	// Yandex Vision OCR
	YCOAuthToken string
	YCFolderID   string

	TelegramBotToken string
	JWTSigningKey    string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	MaxUploadBytes int64
	MaxOutputToken int
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func mustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		logrus.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("bad %s=%q, using default %d", k, v, def)
		return def
	}
	return n
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file, using process env")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreFile:    getEnv("STORE_FILE", "assignments.json"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		YCOAuthToken: getEnv("YC_OAUTH_TOKEN", ""),
		YCFolderID:   getEnv("YC_FOLDER_ID", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSigningKey:    getEnv("JWT_SIGNING_KEY", "dev-signing-key"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", "noreply@taskmate.local"),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxOutputToken: getEnvInt("MAX_OUTPUT_TOKENS", 2048),
	}
}

// MustDatabaseURL is used by the postgres backend; the file backend never calls it.
func (c *Config) MustDatabaseURL() string {
	if c.DatabaseURL == "" {
		logrus.Fatal("database DSN is empty: set DATABASE_URL")
	}
	return c.DatabaseURL
}
