package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BookingSweeper is the part of the lifecycle engine driven by timers
type BookingSweeper interface {
	ExpireHolds(ctx context.Context) (int, error)
	CompleteElapsed(ctx context.Context) (int, error)
	ExpirePendingExtensions(ctx context.Context) (int, error)
}

// Job runs a sweep on a fixed interval. Runs never overlap.
type Job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (int, error)
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
}

const defaultInterval = 30 * time.Second

func newJob(name string, interval time.Duration, run func(ctx context.Context) (int, error)) *Job {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Job{
		name:     name,
		interval: interval,
		run:      run,
		done:     make(chan struct{}),
	}
}

// NewHoldExpirationJob cancels bookings whose hold ran out
func NewHoldExpirationJob(sweeper BookingSweeper, interval time.Duration) *Job {
	return newJob("hold_expiration", interval, sweeper.ExpireHolds)
}

// NewCompletionJob completes paid and active bookings whose end has passed
func NewCompletionJob(sweeper BookingSweeper, interval time.Duration) *Job {
	return newJob("booking_completion", interval, sweeper.CompleteElapsed)
}

// NewExtensionExpiryJob voids the authorizations of extensions never confirmed by the card holder
func NewExtensionExpiryJob(sweeper BookingSweeper, interval time.Duration) *Job {
	return newJob("extension_expiry", interval, sweeper.ExpirePendingExtensions)
}

func (j *Job) Start(ctx context.Context) {
	slog.Info("Starting job", "job", j.name, "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		// run once right away
		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				slog.Info("Job stopped", "job", j.name)
				return
			case <-j.done:
				slog.Info("Job stopped", "job", j.name)
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for a running sweep to finish
func (j *Job) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
	j.wg.Wait()
}

func (j *Job) sweep(ctx context.Context) {
	start := time.Now()
	n, err := j.run(ctx)
	if err != nil {
		slog.Error("Job run failed", "job", j.name, "error", err, "processed", n)
		return
	}

	if n == 0 {
		slog.Debug("Job found nothing to process", "job", j.name)
		return
	}
	slog.Info("Job run completed", "job", j.name, "processed", n, "duration_ms", time.Since(start).Milliseconds())
}
