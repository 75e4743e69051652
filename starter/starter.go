package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"fpg-order-system/api"
	"fpg-order-system/bootstrap"
	"fpg-order-system/checkout"
	"fpg-order-system/config"
	"fpg-order-system/dispatch"
	"fpg-order-system/logging"
	"fpg-order-system/models"
	"fpg-order-system/workflows"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

func main() {
	// Command line flags
	orderNumber := flag.String("order-number", "", "Order number (generated when starting a checkout)")
	developerMode := flag.Bool("dev", true, "Start the checkout in developer mode")
	signal := flag.String("signal", "", "Send a signal: shipping-details, edit-shipping, paypal-approved, paypal-cancelled, paypal-error, retry")
	payload := flag.String("payload", "", "JSON payload for the signal")
	query := flag.Bool("query", false, "Query checkout state")
	createSchedule := flag.Bool("create-schedule", false, "Create the order queue drain schedule")
	drainOnce := flag.Bool("drain-once", false, "Run one order queue drain and wait for the result")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}
	kv := logging.NewKV(logger)

	c, err := bootstrap.Temporal(cfg.Temporal, kv)
	if err != nil {
		logger.WithError(err).Fatal("Temporal unavailable")
	}
	defer c.Close()

	ctx := context.Background()
	checkouts := api.NewTemporalCheckouts(c, cfg.Temporal.TaskQueue)

	switch {
	case *createSchedule:
		createDrainSchedule(ctx, c, cfg, logger)
	case *drainOnce:
		runDrain(ctx, c, cfg, logger)
	case *signal != "":
		if *orderNumber == "" {
			logger.Fatal("Order number is required for signal operations. Use -order-number flag")
		}
		sendSignal(ctx, checkouts, *orderNumber, *signal, *payload, logger)
	case *query:
		if *orderNumber == "" {
			logger.Fatal("Order number is required for query operations. Use -order-number flag")
		}
		queryCheckout(ctx, checkouts, *orderNumber, logger)
	default:
		startCheckout(ctx, checkouts, *orderNumber, *developerMode, logger)
	}
}

func startCheckout(ctx context.Context, checkouts *api.TemporalCheckouts, orderNumber string, developerMode bool, logger *logrus.Logger) {
	if orderNumber == "" {
		orderNumber = checkout.NewOrderNumber()
	}

	input := workflows.CheckoutInput{
		OrderNumber: orderNumber,
		Items: []models.LineItem{
			{ID: "FIT-001", Name: "BSP male adaptor 1/2\"", Quantity: 4, Price: decimal.RequireFromString("12.50"), Type: models.ItemTypeProduct},
			{ID: "PWA-001", Name: "Custom hose assembly", Quantity: 1, Price: decimal.RequireFromString("185.00"), Type: models.ItemTypePWA},
		},
		Shipping:        decimal.RequireFromString("15.00"),
		IsDeveloperMode: developerMode,
	}

	if err := checkouts.Start(ctx, input); err != nil {
		logger.WithError(err).Fatal("Unable to start checkout")
	}

	totals := checkout.ComputeTotals(input.Items, input.Shipping)
	logger.WithFields(logrus.Fields{
		"order_number": orderNumber,
		"workflow_id":  workflows.CheckoutWorkflowID(orderNumber),
		"total":        totals.Total.StringFixed(2),
	}).Info("Started checkout")

	fmt.Println("\nTo query checkout state, run:")
	fmt.Printf("  go run ./starter -query -order-number %s\n", orderNumber)
	fmt.Println("To send signals, run:")
	fmt.Printf("  go run ./starter -signal shipping-details -order-number %s -payload '{\"firstName\":\"Sam\",...}'\n", orderNumber)
	fmt.Printf("  go run ./starter -signal paypal-approved -order-number %s -payload '{\"paypalOrderID\":\"...\"}'\n", orderNumber)
}

func sendSignal(ctx context.Context, checkouts *api.TemporalCheckouts, orderNumber, signal, payload string, logger *logrus.Logger) {
	arg, err := signalArg(signal, payload)
	if err != nil {
		logger.WithError(err).Fatal("Invalid signal")
	}

	if err := checkouts.Signal(ctx, orderNumber, signal, arg); err != nil {
		logger.WithError(err).Fatal("Failed to send signal")
	}
	logger.WithFields(logrus.Fields{"order_number": orderNumber, "signal": signal}).Info("Signal sent")
}

func signalArg(signal, payload string) (interface{}, error) {
	var arg interface{}
	switch signal {
	case workflows.SignalShippingDetails:
		arg = &models.UserDetails{}
	case workflows.SignalPayPalApproved:
		arg = &workflows.ApprovalSignal{}
	case workflows.SignalPayPalError:
		arg = &workflows.WidgetErrorSignal{}
	case workflows.SignalEditShipping, workflows.SignalPayPalCancelled, workflows.SignalRetry:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown signal %q", signal)
	}
	if payload == "" {
		return nil, fmt.Errorf("signal %s needs a -payload", signal)
	}
	if err := json.Unmarshal([]byte(payload), arg); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return arg, nil
}

func queryCheckout(ctx context.Context, checkouts *api.TemporalCheckouts, orderNumber string, logger *logrus.Logger) {
	state, err := checkouts.State(ctx, orderNumber)
	if err != nil {
		logger.WithError(err).Fatal("Failed to query checkout")
	}

	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		logger.WithError(err).Fatal("Failed to marshal state")
	}
	fmt.Println("\nCheckout State:")
	fmt.Println(string(stateJSON))
}

func createDrainSchedule(ctx context.Context, c client.Client, cfg *config.Config, logger *logrus.Logger) {
	_, err := c.ScheduleClient().Create(ctx, workflows.DrainScheduleOptions(cfg.Temporal.TaskQueue, cfg.Queue.DrainInterval))
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		logger.Info("Order queue schedule already exists")
		return
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to create schedule")
	}
	logger.WithField("every", cfg.Queue.DrainInterval.String()).Info("Order queue schedule created")
}

func runDrain(ctx context.Context, c client.Client, cfg *config.Config, logger *logrus.Logger) {
	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflows.DrainScheduleID + "-manual",
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.OrderQueueDrainWorkflow)
	if err != nil {
		logger.WithError(err).Fatal("Unable to start drain")
	}

	var result dispatch.BatchResult
	if err := we.Get(ctx, &result); err != nil {
		logger.WithError(err).Error("Drain failed")
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{
		"fetched":       result.Fetched,
		"delivered":     result.Delivered,
		"requeued":      result.Requeued,
		"dead_lettered": result.DeadLettered,
		"lost":          result.Lost,
		"skipped":       result.Skipped,
	}).Info("Drain completed")
}
