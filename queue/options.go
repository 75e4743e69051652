package queue

import "time"

const (
	defaultKeyPrefix   = "orders:email"
	defaultLedgerTTL   = 7 * 24 * time.Hour
	defaultDedupWindow = 0
)

type config struct {
	keyPrefix   string
	logger      Logger
	now         func() time.Time
	dedupWindow time.Duration
	ledgerTTL   time.Duration
}

func (c config) withDefaults() config {
	if c.keyPrefix == "" {
		c.keyPrefix = defaultKeyPrefix
	}
	if c.logger == nil {
		c.logger = NopLogger{}
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.dedupWindow < 0 {
		c.dedupWindow = defaultDedupWindow
	}
	if c.ledgerTTL <= 0 {
		c.ledgerTTL = defaultLedgerTTL
	}
	return c
}

// Option configures a Queue.
type Option func(*config)

// WithKeyPrefix namespaces every key the queue touches.
func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		c.keyPrefix = prefix
	}
}

// WithLogger sets the logger store failures are reported to.
func WithLogger(logger Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithDedupWindow suppresses a second enqueue of the same order number inside the window.
// Zero disables deduplication.
func WithDedupWindow(window time.Duration) Option {
	return func(c *config) {
		c.dedupWindow = window
	}
}

// WithLedgerTTL sets how long delivery markers are kept.
func WithLedgerTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ledgerTTL = ttl
	}
}
