package queue

import (
	"context"
	"time"
)

// The delivery ledger records which parts of an order's email work have gone out, so a
// consumer that sees the same order twice does not send the same message twice.

// MarkDelivered records that part was delivered for the order. It reports false when the
// marker already existed or could not be written.
func (q *Queue) MarkDelivered(ctx context.Context, orderNumber, part string) bool {
	ok, err := q.rdb.SetNX(ctx, q.sentKey(orderNumber, part), q.cfg.now().Format(time.RFC3339), q.cfg.ledgerTTL).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to record delivery", "order_number", orderNumber, "part", part, "error", err)
		return false
	}
	return ok
}

// Delivered reports whether part has already been delivered for the order. A store failure
// reports false, so the part is attempted again.
func (q *Queue) Delivered(ctx context.Context, orderNumber, part string) bool {
	n, err := q.rdb.Exists(ctx, q.sentKey(orderNumber, part)).Result()
	if err != nil {
		q.cfg.logger.Error("Failed to read delivery ledger", "order_number", orderNumber, "part", part, "error", err)
		return false
	}
	return n > 0
}
