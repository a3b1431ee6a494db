package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/adanyl0v/tasktracker/internal/models"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type TaskService interface {
	// InitSchema creates the tasks table if it doesn't exist.
	// Calling it against an existing table is a no-op.
	InitSchema(ctx context.Context) error

	// CreateTask persists the task and returns the id assigned
	// by the store. The ID of the given task is ignored and no
	// field is validated, so an empty title is accepted.
	CreateTask(ctx context.Context, task models.Task) (int64, error)

	// ListTasks returns every task in insertion order.
	ListTasks(ctx context.Context) ([]models.Task, error)

	// GetTask returns the task with the given id or
	// ErrTaskNotFound if there is no such task.
	GetTask(ctx context.Context, id int64) (models.Task, error)

	// UpdateTask overwrites the title, description, category and
	// status of the task with the same id. CreatedAt is never
	// changed.
	//
	// Updating a task that doesn't exist is a no-op and
	// returns nil.
	UpdateTask(ctx context.Context, task models.Task) error

	// DeleteTask removes the task with the given id.
	// Deleting a task that doesn't exist is a no-op and
	// returns nil.
	DeleteTask(ctx context.Context, id int64) error

	// SearchTasks returns the tasks whose title or description
	// contains the query. Matching is case-insensitive for ASCII
	// letters only, and % and _ in the query match literally.
	// A blank query is not special-cased.
	SearchTasks(ctx context.Context, query string) ([]models.Task, error)
}

// StorageError reports a failure of the underlying database.
// It matches ErrStorageUnavailable with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func newStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
