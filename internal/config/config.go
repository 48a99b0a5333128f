package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the engine.
type AppConfig struct {
	DatabaseURL string

	MailgunDomain string
	MailgunAPIKey string
	EmailFrom     string

	SMSAPIURL   string
	SMSUsername string
	SMSPassword string
	SMSFrom     string

	AMQPURL string

	TriggerToken string

	BatchSize      int
	SendDelay      time.Duration
	CooldownWindow time.Duration

	CronSpecProcess string

	HTTPAddr    string
	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
// godotenv.Load will not override existing env variables.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.MailgunDomain = os.Getenv("MAILGUN_DOMAIN")
	cfg.MailgunAPIKey = os.Getenv("MAILGUN_API_KEY")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")

	cfg.SMSAPIURL = os.Getenv("SMS_API_URL")
	if cfg.SMSAPIURL == "" {
		cfg.SMSAPIURL = "https://api.46elks.com/a1/sms"
	}
	cfg.SMSUsername = os.Getenv("SMS_API_USERNAME")
	cfg.SMSPassword = os.Getenv("SMS_API_PASSWORD")
	cfg.SMSFrom = os.Getenv("SMS_FROM")

	cfg.AMQPURL = os.Getenv("AMQP_URL") // optional, events disabled when empty

	cfg.TriggerToken = os.Getenv("TRIGGER_TOKEN")
	if cfg.TriggerToken == "" {
		return nil, fmt.Errorf("TRIGGER_TOKEN is not set")
	}

	cfg.BatchSize = 50
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid BATCH_SIZE: %q", v)
		}
		cfg.BatchSize = n
	}

	cfg.SendDelay = 500 * time.Millisecond
	if v := os.Getenv("SEND_DELAY_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid SEND_DELAY_MS: %q", v)
		}
		cfg.SendDelay = time.Duration(n) * time.Millisecond
	}

	cfg.CooldownWindow = 7 * 24 * time.Hour
	if v := os.Getenv("COOLDOWN_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid COOLDOWN_DAYS: %q", v)
		}
		cfg.CooldownWindow = time.Duration(n) * 24 * time.Hour
	}

	cfg.CronSpecProcess = os.Getenv("CRON_SPEC_PROCESS")
	if cfg.CronSpecProcess == "" {
		cfg.CronSpecProcess = "*/1 * * * *" // Default: every minute
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	return cfg, nil
}
