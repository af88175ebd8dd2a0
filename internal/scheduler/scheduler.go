// Package scheduler runs named jobs once per day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Daily runs registered jobs every day at one clock time in one location.
// Runs of the same job never overlap.
type Daily struct {
	scheduler *gocron.Scheduler
	at        string
	logger    *slog.Logger

	mu     sync.Mutex
	jobs   []namedJob
	ctx    context.Context
	cancel context.CancelFunc
}

type namedJob struct {
	name string
	fn   Job
}

// NewDaily creates a scheduler firing at clock ("HH:MM", 24-hour) in loc.
func NewDaily(loc *time.Location, clock string, logger *slog.Logger) (*Daily, error) {
	if loc == nil {
		return nil, errors.New("scheduler location is required")
	}
	if _, err := time.Parse("15:04", clock); err != nil {
		return nil, fmt.Errorf("invalid time of day %q, want HH:MM", clock)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Daily{
		scheduler: s,
		at:        clock,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Register adds a job. Jobs must be registered before Start.
func (d *Daily) Register(name string, fn Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.scheduler.Every(1).Day().At(d.at).Tag(name).Do(d.run, name, fn); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	d.jobs = append(d.jobs, namedJob{name: name, fn: fn})
	return nil
}

// Start begins firing jobs in the background.
func (d *Daily) Start() {
	d.scheduler.StartAsync()
	_, next := d.scheduler.NextRun()
	d.logger.Info("scheduler started", "at", d.at, "location", d.scheduler.Location().String(), "next_run", next)
}

// Stop cancels the context passed to running jobs and halts the schedule.
func (d *Daily) Stop() {
	d.cancel()
	d.scheduler.Stop()
}

// RunNow runs every registered job once, synchronously, and returns the
// joined errors.
func (d *Daily) RunNow(ctx context.Context) error {
	d.mu.Lock()
	jobs := append([]namedJob(nil), d.jobs...)
	d.mu.Unlock()

	var errs []error
	for _, j := range jobs {
		if err := j.fn(ctx); err != nil {
			d.logger.Error("scheduled job failed", "job", j.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errors.Join(errs...)
}

// NextRun reports when the next job fires.
func (d *Daily) NextRun() time.Time {
	_, next := d.scheduler.NextRun()
	return next
}

func (d *Daily) run(name string, fn Job) {
	start := time.Now()
	if err := fn(d.ctx); err != nil {
		d.logger.Error("scheduled job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	d.logger.Info("scheduled job finished", "job", name, "duration", time.Since(start))
}
