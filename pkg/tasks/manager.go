package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/telemetry/logging"
)

// Factory builds a fresh agent for a task request, applying its model and
// retry overrides.
type Factory func(req Request) (agent.Agent, error)

// Observer receives task lifecycle notifications, e.g. for metrics.
type Observer interface {
	TaskSubmitted()
	TaskFinished(status Status, elapsed time.Duration)
	CallbackDelivered(err error)
}

type nopObserver struct{}

func (nopObserver) TaskSubmitted()                     {}
func (nopObserver) TaskFinished(Status, time.Duration) {}
func (nopObserver) CallbackDelivered(error)            {}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkers sets the number of worker goroutines. Default: 4.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithQueueSize sets how many tasks may wait for a worker. Default: 128.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithCallbackSender enables callback delivery.
func WithCallbackSender(s *CallbackSender) Option {
	return func(m *Manager) { m.callbacks = s }
}

// Manager owns the task queue and the worker pool.
type Manager struct {
	store     Store
	factory   Factory
	callbacks *CallbackSender
	logger    *slog.Logger
	observer  Observer
	workers   int
	queueSize int
	now       func() time.Time

	mu     sync.RWMutex
	queue  chan *Task
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager and starts its workers.
func NewManager(store Store, factory Factory, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		factory:   factory,
		logger:    slog.Default(),
		observer:  nopObserver{},
		workers:   4,
		queueSize: 128,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.queue = make(chan *Task, m.queueSize)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	m.logger.Info("task manager started", "workers", m.workers, "queue_size", m.queueSize)
	return m
}

// Submit stores a new processing task and queues it. The returned task is
// a snapshot; poll Get for the outcome.
func (m *Manager) Submit(ctx context.Context, req Request, callbackURL string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	t := &Task{
		ID:          uuid.NewString(),
		Status:      StatusProcessing,
		Request:     req,
		CallbackURL: callbackURL,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store task: %w", err)
	}

	select {
	case m.queue <- t.Clone():
	default:
		t.fail(ErrQueueFull, m.now().UTC())
		if err := m.store.Save(ctx, t); err != nil {
			m.logger.Error("failed to store rejected task", "task_id", t.ID, "error", err)
		}
		return nil, ErrQueueFull
	}

	m.observer.TaskSubmitted()
	m.logger.InfoContext(ctx, "task submitted", "task_id", t.ID, "stream", req.Stream)
	return t, nil
}

// Get returns the stored task with the given ID.
func (m *Manager) Get(ctx context.Context, id string) (*Task, error) {
	return m.store.Get(ctx, id)
}

// QueueDepth returns the number of tasks waiting for a worker.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

// Shutdown stops accepting tasks and waits for queued and in-flight tasks
// to finish. If ctx ends first, running agents are cancelled and ctx's
// error is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		m.logger.Info("task manager stopped")
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for t := range m.queue {
		m.process(t)
	}
}

func (m *Manager) process(t *Task) {
	ctx := logging.WithTaskID(m.ctx, t.ID)
	start := m.now()

	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "task panicked", "panic", r)
			t.fail(fmt.Errorf("task panicked: %v", r), m.now().UTC())
			m.finish(ctx, t, start)
		}
	}()

	a, err := m.factory(t.Request)
	if err != nil {
		t.fail(fmt.Errorf("failed to create agent: %w", err), m.now().UTC())
		m.finish(ctx, t, start)
		return
	}
	for _, msg := range t.Request.Messages {
		if err := a.AddMessage(msg.Role, msg.Content); err != nil {
			t.fail(fmt.Errorf("invalid history: %w", err), m.now().UTC())
			m.finish(ctx, t, start)
			return
		}
	}

	var result *agent.Result
	if t.Request.Stream {
		result = a.StreamRun(ctx, t.Request.Prompt, t.Request.SystemPrompt, nil)
	} else {
		result = a.Run(ctx, t.Request.Prompt, t.Request.SystemPrompt)
	}
	t.complete(result, a.RetryOutcome(), m.now().UTC())
	m.finish(ctx, t, start)
}

// finish stores the terminal task and delivers its callback.
func (m *Manager) finish(ctx context.Context, t *Task, start time.Time) {
	elapsed := m.now().Sub(start)

	// The record must land even if shutdown cancelled the run.
	storeCtx := context.WithoutCancel(ctx)
	if err := m.store.Save(storeCtx, t); err != nil {
		m.logger.ErrorContext(ctx, "failed to store finished task", "error", err)
	}
	m.observer.TaskFinished(t.Status, elapsed)
	m.logger.InfoContext(ctx, "task finished",
		"status", t.Status,
		"latency_ms", elapsed.Milliseconds(),
	)

	if t.CallbackURL == "" || m.callbacks == nil {
		return
	}
	err := m.callbacks.Send(ctx, t)
	m.observer.CallbackDelivered(err)
	if err != nil {
		m.logger.WarnContext(ctx, "task callback failed", "error", err)
	}
}
