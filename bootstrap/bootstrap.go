// Package bootstrap builds the collaborators shared by the worker, the API server and the
// starter from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"fpg-order-system/checkout"
	"fpg-order-system/config"
	"fpg-order-system/dispatch"
	"fpg-order-system/email"
	"fpg-order-system/gateway"
	"fpg-order-system/logging"
	"fpg-order-system/queue"
	"fpg-order-system/session"
	"fpg-order-system/telegram"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-redis/redis/v8"
	"go.temporal.io/sdk/client"
)

// Redis connects and pings the store behind the queue and sessions.
func Redis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Temporal dials the Temporal frontend with logs routed through kv.
func Temporal(cfg config.TemporalConfig, kv *logging.KV) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    kv.With("component", "temporal"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

func Queue(rdb redis.Cmdable, cfg config.QueueConfig, kv *logging.KV) *queue.Queue {
	return queue.New(rdb,
		queue.WithKeyPrefix(cfg.KeyPrefix),
		queue.WithDedupWindow(cfg.DedupWindow),
		queue.WithLedgerTTL(cfg.LedgerTTL),
		queue.WithLogger(kv.With("component", "queue")),
	)
}

func Sessions(rdb redis.Cmdable) *session.Store {
	return session.NewStore(rdb, session.TTLs{
		Cart:       checkout.CartTTL,
		Summary:    checkout.SummaryTTL,
		Completing: checkout.CompletingMarkerTTL,
		Viewing:    checkout.ViewingMarkerTTL,
	})
}

// Gateway builds the payment collaborator client. The capture deadline is always
// checkout.CaptureTimeout so it stays inside the capture activity's own timeout.
func Gateway(cfg config.GatewayConfig) *gateway.Client {
	return gateway.NewClient(gateway.Config{
		BaseURL:        cfg.BaseURL,
		CaptureTimeout: checkout.CaptureTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}, &http.Client{})
}

// Processor wires the queue consumer: SES behind a circuit breaker, the order email composer
// and, when configured, the Telegram support relay.
func Processor(ctx context.Context, cfg *config.Config, q *queue.Queue, kv *logging.KV) (*dispatch.Processor, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	ses, err := email.NewSESSender(awsCfg, cfg.Email.From)
	if err != nil {
		return nil, err
	}

	breakerLog := kv.With("component", "email-breaker")
	sender := email.NewBreakerSender(ses, email.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.Email.BreakerFailures),
		OpenTimeout:         cfg.Email.BreakerOpenTimeout,
		OnStateChange: func(from, to string) {
			breakerLog.Warn("Email circuit breaker state changed", "from", from, "to", to)
		},
	})

	composer, err := email.NewComposer(email.ComposerConfig{
		StoreName:          cfg.Email.StoreName,
		InternalRecipients: cfg.Email.InternalRecipients,
		TestInbox:          cfg.Email.TestInbox,
		ReplyTo:            cfg.Email.ReplyTo,
	})
	if err != nil {
		return nil, err
	}

	var alerter dispatch.Alerter
	tg := telegram.Config{BotToken: cfg.Telegram.BotToken, ChatID: cfg.Telegram.ChatID}
	if tg.Enabled() {
		alerter = telegram.NewNotifier(tg, nil)
	} else {
		kv.Warn("Telegram not configured, dead-lettered orders will only be logged")
	}

	return dispatch.NewProcessor(q, composer, sender, alerter,
		dispatch.Config{BatchSize: cfg.Queue.BatchSize},
		kv.With("component", "dispatch")), nil
}
