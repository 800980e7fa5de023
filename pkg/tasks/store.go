package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shareai/chatrelay/pkg/config"
)

// Store persists task records.
type Store interface {
	// Save inserts or replaces the task with t.ID.
	Save(ctx context.Context, t *Task) error

	// Get returns the task with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// DeleteFinishedBefore removes finished tasks completed before cutoff
	// and returns how many were removed. Processing tasks are kept.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks that the store is usable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// NewStore creates the store selected by cfg.Backend.
func NewStore(cfg config.TasksConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown task store backend %q", cfg.Backend)
	}
}
