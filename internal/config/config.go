package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for the application.
type Config struct {
	DBPath      string `env:"CELLAR_DB_PATH" envDefault:"data/db/cellar.db"`
	SnapshotDir string `env:"CELLAR_SNAPSHOT_DIR"`
	UserID      string `env:"CELLAR_USER_ID" envDefault:"local"`

	StandoutRating    float64       `env:"CELLAR_STANDOUT_RATING" envDefault:"4.2"`
	DeltaLookback     time.Duration `env:"CELLAR_DELTA_LOOKBACK" envDefault:"720h"`
	AlternativesLimit int           `env:"CELLAR_ALTERNATIVES_LIMIT" envDefault:"6"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GroqAPIKey   string `env:"GROQ_API_KEY"`

	// Supabase is optional; without it bottles come from the local database.
	SupabaseURL       string `env:"SUPABASE_URL"`
	SupabaseAnonKey   string `env:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`

	// Telegram Config
	TelegramBotToken       string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL     string  `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramAllowedUserIDs []int64 `env:"TELEGRAM_ALLOWED_USER_IDS" envSeparator:","`
	TelegramAdminID        int64   `env:"TELEGRAM_ADMIN_ID"`
	Port                   string  `env:"PORT" envDefault:"8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"`
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.StandoutRating < 0 || cfg.StandoutRating > 5 {
		return nil, fmt.Errorf("CELLAR_STANDOUT_RATING must be within 0..5, got %v", cfg.StandoutRating)
	}
	if cfg.DeltaLookback <= 0 {
		return nil, fmt.Errorf("CELLAR_DELTA_LOOKBACK must be positive, got %s", cfg.DeltaLookback)
	}
	if cfg.AlternativesLimit < 1 {
		return nil, fmt.Errorf("CELLAR_ALTERNATIVES_LIMIT must be positive, got %d", cfg.AlternativesLimit)
	}
	return &cfg, nil
}

// RequireLLM checks the keys the analysis and import agents need.
func (c *Config) RequireLLM() error {
	if c.GeminiAPIKey == "" && c.GroqAPIKey == "" {
		return errors.New("GEMINI_API_KEY or GROQ_API_KEY environment variable not set")
	}
	return nil
}

// RequireBot checks the settings the Telegram bot cannot run without.
func (c *Config) RequireBot() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return errors.New("TELEGRAM_ALLOWED_USER_IDS environment variable not set")
	}
	return nil
}

// UseSupabase reports whether the Supabase bottle provider is configured.
func (c *Config) UseSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != "" && c.SupabaseJWTSecret != ""
}

// IsAllowed reports whether a Telegram user may talk to the bot.
func (c *Config) IsAllowed(telegramID int64) bool {
	return slices.Contains(c.TelegramAllowedUserIDs, telegramID)
}
