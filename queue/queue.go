// Package queue is the order email queue: a Redis list drained oldest-first, with advisory
// per-order processing locks, a retry ceiling and a dead-letter list.
//
// Every operation is a single Redis primitive. Nothing here is transactional, so delivery is
// at-least-once and consumers must tolerate seeing the same order twice. Store failures never
// escape: they are logged and turned into an empty or false result so the checkout path is
// never blocked by email-queue health.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fpg-order-system/models"

	"github.com/go-redis/redis/v8"
)

const (
	// MaxRetries is the number of requeues an item gets before it is dead-lettered.
	MaxRetries = 3
	// LockTTL bounds how long a crashed consumer can hold an order.
	LockTTL = 10 * time.Minute
	// WarningThreshold is the pending count above which the queue reports "warning".
	WarningThreshold = 50

	ReasonMaxRetries = "max_retries_exceeded"

	lockValue = "processing"
)

// Queue is the Redis-backed order email queue.
type Queue struct {
	rdb redis.Cmdable
	cfg config
}

// New constructs a Queue on top of any go-redis client.
func New(rdb redis.Cmdable, opts ...Option) *Queue {
	if rdb == nil {
		panic("queue: nil redis client")
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Queue{rdb: rdb, cfg: cfg.withDefaults()}
}

func (q *Queue) liveKey() string { return q.cfg.keyPrefix + ":queue" }
func (q *Queue) deadKey() string { return q.cfg.keyPrefix + ":dead" }

func (q *Queue) lockKey(orderNumber string) string {
	return q.cfg.keyPrefix + ":lock:" + orderNumber
}

func (q *Queue) enqueuedKey(orderNumber string) string {
	return q.cfg.keyPrefix + ":enqueued:" + orderNumber
}

func (q *Queue) sentKey(orderNumber, part string) string {
	return q.cfg.keyPrefix + ":sent:" + orderNumber + ":" + part
}

// Enqueue pushes a new item for the order onto the head of the live list.
func (q *Queue) Enqueue(ctx context.Context, payload models.OrderPayload) bool {
	now := q.cfg.now()
	item := models.QueueItem{
		ID:              fmt.Sprintf("%s-%d", payload.OrderNumber, now.UnixMilli()),
		OrderNumber:     payload.OrderNumber,
		PayPalOrderID:   payload.PayPalOrderID,
		PayPalCaptureID: payload.PayPalCaptureID,
		UserDetails:     payload.UserDetails,
		WebsiteProducts: payload.WebsiteProducts,
		PWAOrders:       payload.PWAOrders,
		Trac360Orders:   payload.Trac360Orders,
		Totals:          payload.Totals,
		TestingMode:     payload.TestingMode,
		AddedAt:         now,
		Retries:         0,
		Status:          models.QueueStatusPending,
	}

	if q.cfg.dedupWindow > 0 {
		fresh, err := q.rdb.SetNX(ctx, q.enqueuedKey(item.OrderNumber), item.ID, q.cfg.dedupWindow).Result()
		if err != nil {
			q.cfg.logger.Warn("Dedup check failed, enqueueing anyway", "order_number", item.OrderNumber, "error", err)
		} else if !fresh {
			q.cfg.logger.Info("Duplicate enqueue suppressed", "order_number", item.OrderNumber)
			return true
		}
	}

	if err := q.push(ctx, q.liveKey(), item); err != nil {
		q.cfg.logger.Error("Failed to enqueue order", "order_number", item.OrderNumber, "error", err)
		if q.cfg.dedupWindow > 0 {
			_ = q.rdb.Del(ctx, q.enqueuedKey(item.OrderNumber)).Err()
		}
		return false
	}

	q.cfg.logger.Info("Order queued for email", "order_number", item.OrderNumber, "queue_id", item.ID)
	return true
}

// DequeueBatch pops up to batchSize items from the tail of the live list, oldest first.
// On a store error the items already popped are pushed back to the tail and nothing is returned.
func (q *Queue) DequeueBatch(ctx context.Context, batchSize int) []models.QueueItem {
	if batchSize <= 0 {
		return []models.QueueItem{}
	}

	raws := make([]string, 0, batchSize)
	for len(raws) < batchSize {
		raw, err := q.rdb.RPop(ctx, q.liveKey()).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			q.cfg.logger.Error("Failed to dequeue batch", "popped", len(raws), "error", err)
			q.restoreTail(ctx, raws)
			return []models.QueueItem{}
		}
		raws = append(raws, raw)
	}

	items := make([]models.QueueItem, 0, len(raws))
	for _, raw := range raws {
		var item models.QueueItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			q.cfg.logger.Error("Dropping unparsable queue entry", "entry", truncate(raw, 200), "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func (q *Queue) restoreTail(ctx context.Context, raws []string) {
	if len(raws) == 0 {
		return
	}
	// raws[0] is the oldest and must end up back at the tail.
	args := make([]interface{}, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		args = append(args, raws[i])
	}
	if err := q.rdb.RPush(ctx, q.liveKey(), args...).Err(); err != nil {
		q.cfg.logger.Error("Failed to restore popped items", "count", len(raws), "error", err)
	}
}

// AcquireProcessingLock marks the order as being processed. It reports false when another
// consumer already holds the marker or the store is unavailable.
func (q *Queue) AcquireProcessingLock(ctx context.Context, orderNumber string) bool {
	ok, err := q.rdb.SetNX(ctx, q.lockKey(orderNumber), lockValue, LockTTL).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to acquire processing lock", "order_number", orderNumber, "error", err)
		return false
	}
	return ok
}

// IsLocked reports whether a processing marker exists for the order.
func (q *Queue) IsLocked(ctx context.Context, orderNumber string) bool {
	n, err := q.rdb.Exists(ctx, q.lockKey(orderNumber)).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to check processing lock", "order_number", orderNumber, "error", err)
		return false
	}
	return n > 0
}

// ReleaseLock removes the processing marker for the order.
func (q *Queue) ReleaseLock(ctx context.Context, orderNumber string) {
	if err := q.rdb.Del(ctx, q.lockKey(orderNumber)).Err(); err != nil {
		q.cfg.logger.Error("Failed to release processing lock", "order_number", orderNumber, "error", err)
	}
}

// RetryOutcome says where a failed item went.
type RetryOutcome string

const (
	RetryRequeued     RetryOutcome = "requeued"
	RetryDeadLettered RetryOutcome = "dead_lettered"
	RetryStoreFailed  RetryOutcome = "store_failed" // neither list received the item
)

// Requeue puts a failed item back on the head of the live list with its retry count bumped.
// Once the item has used MaxRetries it is moved to the dead-letter list instead and Requeue
// reports false: the item has left the retry path for good. A store failure also reports
// false; use Retry to tell the two apart.
func (q *Queue) Requeue(ctx context.Context, item models.QueueItem) bool {
	return q.Retry(ctx, item) == RetryRequeued
}

// Retry is Requeue with the outcome spelled out.
func (q *Queue) Retry(ctx context.Context, item models.QueueItem) RetryOutcome {
	now := q.cfg.now()

	if item.Retries >= MaxRetries {
		item.Status = models.QueueStatusFailed
		dead := models.DeadLetterItem{
			QueueItem: item,
			FailedAt:  now,
			Reason:    ReasonMaxRetries,
		}
		if err := q.push(ctx, q.deadKey(), dead); err != nil {
			q.cfg.logger.Error("Failed to dead-letter order", "order_number", item.OrderNumber, "error", err)
			return RetryStoreFailed
		}
		q.cfg.logger.Warn("Order moved to dead-letter queue",
			"order_number", item.OrderNumber, "retries", item.Retries, "reason", ReasonMaxRetries)
		return RetryDeadLettered
	}

	item.Retries++
	item.Status = models.QueueStatusRetrying
	item.LastRetryAt = &now

	if err := q.push(ctx, q.liveKey(), item); err != nil {
		q.cfg.logger.Error("Failed to requeue order", "order_number", item.OrderNumber, "error", err)
		return RetryStoreFailed
	}
	q.cfg.logger.Info("Order requeued", "order_number", item.OrderNumber, "retries", item.Retries)
	return RetryRequeued
}

// Restore pushes an item back onto the head of the live list unchanged.
func (q *Queue) Restore(ctx context.Context, item models.QueueItem) bool {
	if err := q.push(ctx, q.liveKey(), item); err != nil {
		q.cfg.logger.Error("Failed to restore order", "order_number", item.OrderNumber, "error", err)
		return false
	}
	return true
}

func (q *Queue) push(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	return q.rdb.LPush(ctx, key, data).Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
