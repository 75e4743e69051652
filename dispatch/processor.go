// Package dispatch drains the order email queue: it sends the customer confirmation and the
// internal notification for each order, requeues failures and raises an alert for orders
// that exhaust their retries.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"fpg-order-system/email"
	"fpg-order-system/models"
	"fpg-order-system/queue"
)

const (
	PartCustomer = "customer"
	PartInternal = "internal"

	DefaultBatchSize = 10
)

// Queue is the subset of *queue.Queue the processor drives.
type Queue interface {
	DequeueBatch(ctx context.Context, batchSize int) []models.QueueItem
	AcquireProcessingLock(ctx context.Context, orderNumber string) bool
	ReleaseLock(ctx context.Context, orderNumber string)
	Retry(ctx context.Context, item models.QueueItem) queue.RetryOutcome
	Restore(ctx context.Context, item models.QueueItem) bool
	Delivered(ctx context.Context, orderNumber, part string) bool
	MarkDelivered(ctx context.Context, orderNumber, part string) bool
}

// Composer renders the two order emails.
type Composer interface {
	CustomerConfirmation(item models.QueueItem) (email.Message, error)
	InternalNotification(item models.QueueItem) (email.Message, error)
}

// Alerter tells operators about orders that need manual follow-up.
type Alerter interface {
	Notify(ctx context.Context, title, body string) error
}

// Config tunes a Processor.
type Config struct {
	BatchSize int
}

// BatchResult counts what one batch did.
type BatchResult struct {
	Fetched      int      `json:"fetched"`
	Delivered    int      `json:"delivered"`
	Requeued     int      `json:"requeued"`
	DeadLettered int      `json:"deadLettered"`
	Lost         int      `json:"lost"`
	Skipped      int      `json:"skipped"`
	Failures     []string `json:"failures,omitempty"`
}

// Processor drains one batch of the queue per call.
type Processor struct {
	queue    Queue
	composer Composer
	sender   email.Sender
	alerter  Alerter
	cfg      Config
	logger   queue.Logger
}

// NewProcessor wires a processor. alerter and logger may be nil.
func NewProcessor(q Queue, composer Composer, sender email.Sender, alerter Alerter, cfg Config, logger queue.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = queue.NopLogger{}
	}
	return &Processor{
		queue:    q,
		composer: composer,
		sender:   sender,
		alerter:  alerter,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessBatch pops up to BatchSize items and tries to deliver each one. Delivery is tracked
// per part, so an order seen twice never gets the same email twice.
func (p *Processor) ProcessBatch(ctx context.Context) BatchResult {
	items := p.queue.DequeueBatch(ctx, p.cfg.BatchSize)
	result := BatchResult{Fetched: len(items)}

	for _, item := range items {
		if p.queue.Delivered(ctx, item.OrderNumber, PartCustomer) && p.queue.Delivered(ctx, item.OrderNumber, PartInternal) {
			p.logger.Info("Order emails already sent, dropping duplicate", "order_number", item.OrderNumber, "queue_id", item.ID)
			result.Skipped++
			continue
		}

		if !p.queue.AcquireProcessingLock(ctx, item.OrderNumber) {
			p.logger.Info("Order is being processed elsewhere, restoring", "order_number", item.OrderNumber)
			p.queue.Restore(ctx, item)
			result.Skipped++
			continue
		}

		err := p.deliver(ctx, item)
		p.queue.ReleaseLock(ctx, item.OrderNumber)

		if err == nil {
			p.logger.Info("Order emails sent", "order_number", item.OrderNumber, "retries", item.Retries)
			result.Delivered++
			continue
		}

		p.logger.Warn("Order email delivery failed", "order_number", item.OrderNumber, "retries", item.Retries, "error", err)
		result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", item.OrderNumber, err))

		switch p.queue.Retry(ctx, item) {
		case queue.RetryRequeued:
			result.Requeued++
		case queue.RetryDeadLettered:
			result.DeadLettered++
			p.alertDeadLetter(ctx, item, err)
		default:
			p.logger.Error("Order dropped from the email queue, store unavailable",
				"order_number", item.OrderNumber, "queue_id", item.ID, "retries", item.Retries)
			result.Lost++
			p.alertLost(ctx, item, err)
		}
	}

	p.logger.Info("Order queue batch processed",
		"fetched", result.Fetched,
		"delivered", result.Delivered,
		"requeued", result.Requeued,
		"dead_lettered", result.DeadLettered,
		"lost", result.Lost,
		"skipped", result.Skipped)
	return result
}

func (p *Processor) deliver(ctx context.Context, item models.QueueItem) error {
	parts := []struct {
		name    string
		compose func(models.QueueItem) (email.Message, error)
	}{
		{PartCustomer, p.composer.CustomerConfirmation},
		{PartInternal, p.composer.InternalNotification},
	}

	var errs []error
	for _, part := range parts {
		if p.queue.Delivered(ctx, item.OrderNumber, part.name) {
			continue
		}
		msg, err := part.compose(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("compose %s email: %w", part.name, err))
			continue
		}
		if err := p.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send %s email: %w", part.name, err))
			continue
		}
		p.queue.MarkDelivered(ctx, item.OrderNumber, part.name)
	}
	return errors.Join(errs...)
}

func (p *Processor) alertDeadLetter(ctx context.Context, item models.QueueItem, cause error) {
	if p.alerter == nil {
		return
	}
	body := fmt.Sprintf("Order %s left the email retry path after %d retries (%s) and needs manual follow-up.\nCustomer: %s <%s>\nTotal: %s AUD\nLast error: %v",
		item.OrderNumber, item.Retries, queue.ReasonMaxRetries,
		item.UserDetails.FullName(), item.UserDetails.Email,
		item.Totals.Total.StringFixed(2), cause)
	if err := p.alerter.Notify(ctx, "Order emails failed", body); err != nil {
		p.logger.Error("Failed to send dead-letter alert", "order_number", item.OrderNumber, "error", err)
	}
}

func (p *Processor) alertLost(ctx context.Context, item models.QueueItem, cause error) {
	if p.alerter == nil {
		return
	}
	body := fmt.Sprintf("Order %s could not be put back on the email queue (store unavailable) and needs manual follow-up.\nCustomer: %s <%s>\nTotal: %s AUD\nLast error: %v",
		item.OrderNumber, item.UserDetails.FullName(), item.UserDetails.Email,
		item.Totals.Total.StringFixed(2), cause)
	if err := p.alerter.Notify(ctx, "Order emails lost", body); err != nil {
		p.logger.Error("Failed to send lost-order alert", "order_number", item.OrderNumber, "error", err)
	}
}
