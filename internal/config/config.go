package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application, loaded from the
// environment (with an optional .env file for local development).
type Config struct {
	Port        string
	DatabaseURL string
	AMQPURL     string
	AppBaseURL  string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	PostmarkToken     string
	PostmarkFromEmail string

	// Shared secret for verifying email-provider webhook bodies.
	EmailWebhookSecret string

	DefaultBatchSize int

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. A missing .env
// file is not an error; real environments set variables directly.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AppBaseURL:         getenv("APP_BASE_URL", "http://localhost:8080"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:   os.Getenv("TWILIO_FROM_NUMBER"),
		PostmarkToken:      os.Getenv("POSTMARK_SERVER_TOKEN"),
		PostmarkFromEmail:  getenv("POSTMARK_FROM_EMAIL", "noreply@localhost"),
		EmailWebhookSecret: os.Getenv("EMAIL_WEBHOOK_SECRET"),
		DefaultBatchSize:   getenvInt("DISPATCH_BATCH_SIZE", 50),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "console"),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer env value, using default")
		return fallback
	}
	return n
}
