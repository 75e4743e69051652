package activities

import (
	"context"

	"fpg-order-system/dispatch"

	"go.temporal.io/sdk/activity"
)

// BatchProcessor drains one batch of the order email queue.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) dispatch.BatchResult
}

// QueueActivities contains the scheduled queue consumer
type QueueActivities struct {
	processor BatchProcessor
}

// NewQueueActivities creates a new QueueActivities instance
func NewQueueActivities(processor BatchProcessor) *QueueActivities {
	return &QueueActivities{processor: processor}
}

// DrainOrderQueue processes one batch of queued order emails.
func (a *QueueActivities) DrainOrderQueue(ctx context.Context) (dispatch.BatchResult, error) {
	logger := activity.GetLogger(ctx)

	activity.RecordHeartbeat(ctx, "draining order queue")
	result := a.processor.ProcessBatch(ctx)

	logger.Info("Order queue drained",
		"fetched", result.Fetched,
		"delivered", result.Delivered,
		"requeued", result.Requeued,
		"dead_lettered", result.DeadLettered,
		"lost", result.Lost,
		"skipped", result.Skipped)
	return result, nil
}
