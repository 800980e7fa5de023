package handlers

import (
	"context"

	"shareai/chatrelay/pkg/tasks"
)

// TaskService runs asynchronous chat tasks. *tasks.Manager implements it.
type TaskService interface {
	Submit(ctx context.Context, req tasks.Request, callbackURL string) (*tasks.Task, error)
	Get(ctx context.Context, id string) (*tasks.Task, error)
}

var _ TaskService = (*tasks.Manager)(nil)
