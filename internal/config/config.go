package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the configuration for the application.
type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" env-default:"gemini-1.5-flash-8b"`

	// Telegram config (optional for the CLI, required for the bot)
	TelegramBotToken   string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL string  `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramAllowChats []int64 `env:"TELEGRAM_ALLOWED_CHAT_IDS" env-separator:","`
	TelegramAdminID    int64   `env:"TELEGRAM_ADMIN_ID" env-default:"0"`

	DBPath     string `env:"DB_PATH" env-default:"foodbot.db"`
	ArchiveDir string `env:"ARCHIVE_DIR"`

	LLMTimeout time.Duration `env:"LLM_TIMEOUT" env-default:"60s"`
	HTTPAddr   string        `env:"HTTP_ADDR" env-default:":8080"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

// ValidateModel checks the settings any model-calling command needs.
func (c *Config) ValidateModel() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}

// ValidateBot checks the settings the Telegram bot cannot start without.
func (c *Config) ValidateBot() error {
	if err := c.ValidateModel(); err != nil {
		return err
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}
