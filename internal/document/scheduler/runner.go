// Package scheduler runs the periodic document jobs. Each tick takes a named
// lease first so that across replicas only one runs a given cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fleetdocs/internal/document/ports"
	"fleetdocs/internal/platform/metrics"
	"fleetdocs/pkg/requestcontext"
)

const (
	maxInterval = 24 * time.Hour
	leasePrefix = "task:"
	// leaseShare is the part of the interval a successful cycle keeps its
	// lease, in percent. The rest is slack for ticker jitter.
	leaseShare = 95
)

// ErrUnknownTask is returned by RunNow for names never added.
var ErrUnknownTask = errors.New("unknown task")

// Locker is the lease port shared with the renewal guard.
type Locker = ports.Locker

// Task is one periodic job. Fn must be safe to rerun: a cycle can repeat
// after a crash or an expired lease.
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

type Runner struct {
	locker  Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu    sync.Mutex
	tasks map[string]Task
	order []string
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func New(locker Locker, opts ...Option) (*Runner, error) {
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	r := &Runner{
		locker: locker,
		logger: slog.Default(),
		tracer: otel.Tracer("fleetdocs/scheduler"),
		tasks:  make(map[string]Task),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Add registers a task. Intervals are capped at one day so status never lags
// the calendar by more than that.
func (r *Runner) Add(task Task) error {
	switch {
	case task.Name == "":
		return fmt.Errorf("task name is required")
	case task.Fn == nil:
		return fmt.Errorf("task %s: fn is required", task.Name)
	case task.Interval <= 0:
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	case task.Interval > maxInterval:
		return fmt.Errorf("task %s: interval must not exceed %s", task.Name, maxInterval)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.Name]; exists {
		return fmt.Errorf("task %s already registered", task.Name)
	}
	r.tasks[task.Name] = task
	r.order = append(r.order, task.Name)
	return nil
}

// Run ticks every task on its own interval until ctx is cancelled. The first
// tick fires immediately. Task failures are logged and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	tasks := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		tasks = append(tasks, r.tasks[name])
	}
	r.mu.Unlock()

	if len(tasks) == 0 {
		return errors.New("no tasks registered")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			r.loop(gctx, task)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) loop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.tick(ctx, task); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "scheduled task failed", "task", task.Name, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunNow executes the named task once under its lease. ran is false when
// another holder had the lease.
func (r *Runner) RunNow(ctx context.Context, name string) (ran bool, err error) {
	r.mu.Lock()
	task, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownTask, name)
	}
	return r.tick(ctx, task)
}

// leaseTTL is slightly shorter than the interval so the lease taken on one
// tick has always expired by the next.
func leaseTTL(interval time.Duration) time.Duration {
	return interval / 100 * leaseShare
}

// tick holds the lease for most of the interval after a successful run so
// other replicas skip this cycle. A failed run releases it for a retry.
func (r *Runner) tick(ctx context.Context, task Task) (bool, error) {
	key := leasePrefix + task.Name
	token, ok, err := r.locker.TryLock(ctx, key, leaseTTL(task.Interval))
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		r.metrics.IncTaskSkipped(task.Name)
		r.logger.DebugContext(ctx, "task lease held elsewhere", "task", task.Name)
		return false, nil
	}

	runID := uuid.NewString()
	ctx = requestcontext.WithRunID(ctx, runID)
	ctx, span := r.tracer.Start(ctx, "scheduler."+task.Name, trace.WithAttributes(
		attribute.String("task.name", task.Name),
		attribute.String("task.run_id", runID),
	))
	defer span.End()

	start := time.Now()
	r.logger.InfoContext(ctx, "task started", "task", task.Name, "run_id", runID)
	err = task.Fn(ctx)
	r.metrics.ObserveTask(task.Name, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if unlockErr := r.locker.Unlock(context.WithoutCancel(ctx), key, token); unlockErr != nil {
			r.logger.WarnContext(ctx, "failed to release task lease", "task", task.Name, "error", unlockErr)
		}
		return true, fmt.Errorf("task %s: %w", task.Name, err)
	}
	r.logger.InfoContext(ctx, "task finished",
		"task", task.Name,
		"run_id", runID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true, nil
}
