package queue

import (
	"context"
	"encoding/json"

	"fpg-order-system/models"
)

const (
	HealthHealthy     = "healthy"
	HealthWarning     = "warning"
	HealthUnavailable = "unavailable"
)

// Stats is a point-in-time view of the live and dead-letter list lengths.
type Stats struct {
	Pending     int64 `json:"pending"`
	DeadLetters int64 `json:"deadLetters"`
	Available   bool  `json:"available"`
}

// Health classifies the queue by its pending count.
func (s Stats) Health() string {
	switch {
	case !s.Available:
		return HealthUnavailable
	case s.Pending > WarningThreshold:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Stats returns the live and dead-letter lengths. A store failure yields zero counts with
// Available unset.
func (q *Queue) Stats(ctx context.Context) Stats {
	pending, err := q.rdb.LLen(ctx, q.liveKey()).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to read queue length", "error", err)
		return Stats{}
	}
	dead, err := q.rdb.LLen(ctx, q.deadKey()).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to read dead-letter length", "error", err)
		return Stats{}
	}
	return Stats{Pending: pending, DeadLetters: dead, Available: true}
}

// Peek returns up to n of the most recently enqueued live items without removing them.
func (q *Queue) Peek(ctx context.Context, n int) []models.QueueItem {
	raws := q.sample(ctx, q.liveKey(), n)
	items := make([]models.QueueItem, 0, len(raws))
	for _, raw := range raws {
		var item models.QueueItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

// PeekDeadLetters returns up to n of the most recently dead-lettered items.
func (q *Queue) PeekDeadLetters(ctx context.Context, n int) []models.DeadLetterItem {
	raws := q.sample(ctx, q.deadKey(), n)
	items := make([]models.DeadLetterItem, 0, len(raws))
	for _, raw := range raws {
		var item models.DeadLetterItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (q *Queue) sample(ctx context.Context, key string, n int) []string {
	if n <= 0 {
		return nil
	}
	raws, err := q.rdb.LRange(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to sample list", "key", key, "error", err)
		return nil
	}
	return raws
}
