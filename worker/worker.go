package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fpg-order-system/activities"
	"fpg-order-system/bootstrap"
	"fpg-order-system/config"
	"fpg-order-system/logging"
	"fpg-order-system/workflows"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
)

// Version information - update this when deploying new versions
const (
	WorkerVersion = "2.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		logrus.Fatalf("Invalid worker config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}
	kv := logging.NewKV(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb, err := bootstrap.Redis(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Redis unavailable")
	}
	defer rdb.Close()

	c, err := bootstrap.Temporal(cfg.Temporal, kv)
	if err != nil {
		logger.WithError(err).Fatal("Temporal unavailable")
	}
	defer c.Close()

	q := bootstrap.Queue(rdb, cfg.Queue, kv)
	processor, err := bootstrap.Processor(ctx, cfg, q, kv)
	if err != nil {
		logger.WithError(err).Fatal("Failed to wire order email processor")
	}

	if err := ensureDrainSchedule(ctx, c, cfg); err != nil {
		logger.WithError(err).Fatal("Failed to create order queue schedule")
	}

	// Note: worker versioning requires server-side setup of the task queue
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		BuildID:                                cfg.Temporal.BuildID,
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
	})

	w.RegisterWorkflow(workflows.CheckoutWorkflow)
	w.RegisterWorkflow(workflows.OrderQueueDrainWorkflow)

	gw := bootstrap.Gateway(cfg.Gateway)
	w.RegisterActivity(activities.NewCheckoutActivities(
		gw,
		q,
		bootstrap.Sessions(rdb),
	))
	w.RegisterActivity(activities.NewQueueActivities(processor))

	logger.WithFields(logrus.Fields{
		"version":        WorkerVersion,
		"build_id":       cfg.Temporal.BuildID,
		"temporal":       cfg.Temporal.Address,
		"task_queue":     cfg.Temporal.TaskQueue,
		"payment_api":    cfg.Gateway.BaseURL,
		"capture_after":  gw.CaptureTimeout().String(),
		"drain_interval": cfg.Queue.DrainInterval.String(),
		"workflows":      []string{workflows.CheckoutWorkflowName, workflows.OrderQueueDrainWorkflowName},
	}).Info("Starting Temporal worker")

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.WithError(err).Error("Worker stopped with error")
		os.Exit(1)
	}
}

// ensureDrainSchedule creates the queue drain schedule once. Later workers leave it as is.
func ensureDrainSchedule(ctx context.Context, c client.Client, cfg *config.Config) error {
	_, err := c.ScheduleClient().Create(ctx, workflows.DrainScheduleOptions(cfg.Temporal.TaskQueue, cfg.Queue.DrainInterval))
	if err != nil && !errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		return err
	}
	return nil
}
