package workflows

import (
	"time"

	"fpg-order-system/activities"
	"fpg-order-system/dispatch"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	OrderQueueDrainWorkflowName = "OrderQueueDrainWorkflow"

	// DrainScheduleID identifies the schedule that runs the queue consumer.
	DrainScheduleID = "order-email-queue-drain"
	// DrainInterval is how often the schedule fires.
	DrainInterval = 5 * time.Minute
)

// OrderQueueDrainWorkflow runs one consumer pass over the order email queue. Retries and
// dead-lettering belong to the queue, so the activity itself is attempted once.
func OrderQueueDrainWorkflow(ctx workflow.Context) (dispatch.BatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("OrderQueueDrainWorkflow started")

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var act *activities.QueueActivities

	var result dispatch.BatchResult
	if err := workflow.ExecuteActivity(ctx, act.DrainOrderQueue).Get(ctx, &result); err != nil {
		logger.Error("Order queue drain failed", "error", err)
		return dispatch.BatchResult{}, err
	}

	logger.Info("OrderQueueDrainWorkflow completed",
		"fetched", result.Fetched,
		"delivered", result.Delivered,
		"requeued", result.Requeued,
		"dead_lettered", result.DeadLettered,
		"lost", result.Lost)
	return result, nil
}

// DrainScheduleOptions describes the schedule that runs OrderQueueDrainWorkflow every interval.
// A run still going when the next one is due causes that one to be skipped.
func DrainScheduleOptions(taskQueue string, every time.Duration) client.ScheduleOptions {
	if every <= 0 {
		every = DrainInterval
	}
	return client.ScheduleOptions{
		ID: DrainScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: every}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        DrainScheduleID + "-run",
			Workflow:  OrderQueueDrainWorkflow,
			TaskQueue: taskQueue,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	}
}
