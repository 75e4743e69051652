package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fpg-order-system/api"
	"fpg-order-system/bootstrap"
	"fpg-order-system/config"
	"fpg-order-system/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		logrus.Fatalf("Invalid server config: %v", err)
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

	server := api.New(api.Config{
		Addr:               cfg.Server.ServerAddr(),
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		AdminSecret:        cfg.Security.AdminSecret,
		CronSecret:         cfg.Security.CronSecret,
		RateLimitEnabled:   cfg.Security.RateLimitEnabled,
		RateLimitPerMinute: cfg.Security.RateLimitPerMinute,
		RateLimitBurstSize: cfg.Security.RateLimitBurstSize,
		Debug:              cfg.Logging.Level == "debug",
	}, api.Deps{
		Checkouts: api.NewTemporalCheckouts(c, cfg.Temporal.TaskQueue),
		Sessions:  bootstrap.Sessions(rdb),
		Queue:     q,
		Processor: processor,
		Orders:    bootstrap.Gateway(cfg.Gateway),
		Logger:    kv.With("component", "api"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("Shutting down HTTP server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulStop)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
