package config

import "time"

type Config struct {
	// HTTP server settings
	Server ServerConfig `json:"server"`

	// Temporal connection and worker settings
	Temporal TemporalConfig `json:"temporal"`

	// Redis backs the order queue and session store
	Redis RedisConfig `json:"redis"`

	// Payment collaborator endpoints
	Gateway GatewayConfig `json:"gateway"`

	// Order email delivery
	Email EmailConfig `json:"email"`

	// Support chat relay for dead-lettered orders
	Telegram TelegramConfig `json:"telegram"`

	// Shared secrets and rate limiting
	Security SecurityConfig `json:"security"`

	// Queue consumer settings
	Queue QueueConfig `json:"queue"`

	// Logging settings
	Logging LoggingConfig `json:"logging"`
}

type ServerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	GracefulStop   time.Duration `json:"graceful_stop"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

type TemporalConfig struct {
	Address   string `json:"address"`
	Namespace string `json:"namespace"`
	TaskQueue string `json:"task_queue"`
	BuildID   string `json:"build_id"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type GatewayConfig struct {
	BaseURL        string        `json:"base_url"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

type EmailConfig struct {
	Region             string        `json:"region"`
	From               string        `json:"from"`
	ReplyTo            string        `json:"reply_to"`
	StoreName          string        `json:"store_name"`
	InternalRecipients []string      `json:"internal_recipients"`
	TestInbox          string        `json:"test_inbox"`
	BreakerFailures    int           `json:"breaker_failures"`
	BreakerOpenTimeout time.Duration `json:"breaker_open_timeout"`
}

type TelegramConfig struct {
	BotToken string `json:"-"`
	ChatID   string `json:"chat_id"`
}

type SecurityConfig struct {
	AdminSecret string `json:"-"`
	CronSecret  string `json:"-"`

	// Rate limiting on admin and cron routes
	RateLimitEnabled   bool `json:"rate_limit_enabled"`
	RateLimitPerMinute int  `json:"rate_limit_per_minute"`
	RateLimitBurstSize int  `json:"rate_limit_burst_size"`
}

type QueueConfig struct {
	KeyPrefix     string        `json:"key_prefix"`
	BatchSize     int           `json:"batch_size"`
	DedupWindow   time.Duration `json:"dedup_window"`
	LedgerTTL     time.Duration `json:"ledger_ttl"`
	DrainInterval time.Duration `json:"drain_interval"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}
