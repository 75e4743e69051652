package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingSecret = errors.New("required secret not set")

// Load reads .env when present, then the environment, falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			GracefulStop:   getEnvDuration("SERVER_GRACEFUL_STOP", 30*time.Second),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Temporal: TemporalConfig{
			Address:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			TaskQueue: getEnv("TEMPORAL_TASK_QUEUE", "fpg-checkout-queue"),
			BuildID:   getEnv("BUILD_ID", "1.0.0"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("PAYMENT_API_URL", "http://localhost:3000"),
			RequestTimeout: getEnvDuration("PAYMENT_REQUEST_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			Region:             getEnv("AWS_REGION", "ap-southeast-2"),
			From:               getEnv("EMAIL_FROM", "orders@fpghydraulics.com.au"),
			ReplyTo:            getEnv("EMAIL_REPLY_TO", ""),
			StoreName:          getEnv("STORE_NAME", "FPG Hydraulics"),
			InternalRecipients: getEnvSlice("ORDER_NOTIFICATION_EMAILS", nil),
			TestInbox:          getEnv("TEST_EMAIL_INBOX", ""),
			BreakerFailures:    getEnvInt("EMAIL_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getEnvDuration("EMAIL_BREAKER_OPEN_TIMEOUT", time.Minute),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
		Security: SecurityConfig{
			AdminSecret:        getEnv("ADMIN_SECRET", ""),
			CronSecret:         getEnv("CRON_SECRET", ""),
			RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
			RateLimitBurstSize: getEnvInt("RATE_LIMIT_BURST_SIZE", 5),
		},
		Queue: QueueConfig{
			KeyPrefix:     getEnv("QUEUE_KEY_PREFIX", "orders:email"),
			BatchSize:     getEnvInt("QUEUE_BATCH_SIZE", 10),
			DedupWindow:   getEnvDuration("QUEUE_DEDUP_WINDOW", 24*time.Hour),
			LedgerTTL:     getEnvDuration("QUEUE_LEDGER_TTL", 7*24*time.Hour),
			DrainInterval: getEnvDuration("QUEUE_DRAIN_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/fpg-order-system.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 28),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}
}

// ValidateServer checks what the HTTP server cannot run without.
func (c *Config) ValidateServer() error {
	if c.Security.AdminSecret == "" {
		return fmt.Errorf("%w: ADMIN_SECRET", ErrMissingSecret)
	}
	if c.Security.CronSecret == "" {
		return fmt.Errorf("%w: CRON_SECRET", ErrMissingSecret)
	}
	return c.validateCommon()
}

// ValidateWorker checks what the worker cannot run without.
func (c *Config) ValidateWorker() error {
	if c.Email.From == "" {
		return errors.New("EMAIL_FROM is required")
	}
	if len(c.Email.InternalRecipients) == 0 && c.Email.TestInbox == "" {
		return errors.New("ORDER_NOTIFICATION_EMAILS or TEST_EMAIL_INBOX is required")
	}
	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be positive, got %d", c.Queue.BatchSize)
	}
	return nil
}

// ServerAddr returns the listen address
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
