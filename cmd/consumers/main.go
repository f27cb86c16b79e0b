package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"parkly/cmd/consumers/jobs"
	"parkly/internal/config"
	"parkly/internal/consumers"
	"parkly/internal/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting consumers service...")

	// client ids are per process; the API uses the configured one
	cfg.NATS.ClientID = "parkly-consumers"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumerService, err := consumers.NewConsumerService(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	backgroundJobs := []*jobs.Job{
		jobs.NewHoldExpirationJob(consumerService.Bookings(), cfg.JobInterval),
		jobs.NewCompletionJob(consumerService.Bookings(), cfg.JobInterval),
		jobs.NewExtensionExpiryJob(consumerService.Bookings(), cfg.JobInterval),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range backgroundJobs {
		job := job
		g.Go(func() error {
			job.Start(gctx)
			<-gctx.Done()
			job.Stop()
			return nil
		})
	}

	log.Info("Consumers service started successfully")
	if err := g.Wait(); err != nil {
		log.Error("Background job failed", "error", err)
	}

	log.Info("Shutting down consumers service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Consumers service stopped")
}
