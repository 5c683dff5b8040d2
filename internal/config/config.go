package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	JWTSecret    string `env:"JWT_SECRET"`
	HTTPPort     string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"INFO"`

	// Storage
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"` // sqlite or pebble
	DatabaseURL  string `env:"DATABASE_URL" envDefault:"radzz_chat.db"`
	PebbleDir    string `env:"PEBBLE_DIR" envDefault:"radzz_data"`

	// Chat behaviour
	MediaDelay         time.Duration `env:"MEDIA_DELAY" envDefault:"1500ms"`
	MaxAttachmentBytes int64         `env:"MAX_ATTACHMENT_BYTES" envDefault:"10485760"`
	PremiumTrials      int           `env:"PREMIUM_TRIALS" envDefault:"6"`
	StudyTrials        int           `env:"STUDY_TRIALS" envDefault:"49"`

	// Send rate limit, per client
	SendRPS   float64 `env:"SEND_RPS" envDefault:"1"`
	SendBurst int     `env:"SEND_BURST" envDefault:"3"`

	// Checkout
	CheckoutKey      string `env:"CHECKOUT_KEY" envDefault:"rzp_test_ILzodxM4UNEU22"`
	CheckoutCurrency string `env:"CHECKOUT_CURRENCY" envDefault:"INR"`
}

var AppConfig Config

// LoadConfig reads an optional .env file and then the process environment.
// Missing required secrets are reported by Validate, not here, so CLI
// commands that never talk to Gemini can still run.
func LoadConfig() error {
	// A missing .env file is fine; the environment is authoritative.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	AppConfig = cfg
	return nil
}

// Validate checks the settings needed to run the HTTP server.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.StoreBackend {
	case "sqlite", "pebble":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive")
	}
	if c.PremiumTrials < 0 || c.StudyTrials < 0 {
		return fmt.Errorf("trial counters must not be negative")
	}
	return nil
}
