package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes finished tasks older than a retention window, either on
// a cron schedule or on demand.
type Pruner struct {
	store    Store
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner. schedule accepts standard five-field cron
// expressions and descriptors such as "@hourly".
func NewPruner(store Store, maxAge time.Duration, schedule string, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger.With("component", "tasks.pruner"),
		now:      time.Now,
		cron:     cron.New(),
	}
}

// RunOnce deletes finished tasks completed more than maxAge ago.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.maxAge)
	deleted, err := p.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tasks: %w", err)
	}
	return deleted, nil
}

// Start schedules RunOnce. The schedule stops when ctx is done or Stop is
// called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.schedule, err)
	}

	if _, err := p.cron.AddFunc(p.schedule, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}
	p.cron.Start()
	p.running = true

	p.logger.Info("task pruner started", "schedule", p.schedule, "max_age", p.maxAge)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

func (p *Pruner) run(ctx context.Context) {
	deleted, err := p.RunOnce(ctx)
	if err != nil {
		p.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		p.logger.Debug("scheduled pruning completed, no tasks deleted")
	}
}

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("task pruner stopped")
}

// NextRun returns the next scheduled prune, or nil when not running.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
