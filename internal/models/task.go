package models

import (
	"fmt"
	"time"
)

const (
	StatusPending = "Pending"
	StatusDone    = "Done"
)

// Task is a single to-do record.
//
// ID is zero until the task is persisted; the store assigns
// positive ids only. CreatedAt is set once by NewTask and is
// never changed by an update.
type Task struct {
	ID          int64
	Title       string `validate:"required,max=255"`
	Description string
	Category    string `validate:"max=64"`
	Status      string `validate:"max=64"`
	CreatedAt   time.Time
}

// NewTask returns an unpersisted pending task created now.
func NewTask(title, description, category string) Task {
	return Task{
		Title:       title,
		Description: description,
		Category:    category,
		Status:      StatusPending,
		CreatedAt:   time.Now().Truncate(time.Second),
	}
}

func (t Task) IsPersisted() bool {
	return t.ID != 0
}

// String renders the task as a single list line.
func (t Task) String() string {
	return fmt.Sprintf("%d: %s - %s [%s]", t.ID, t.Title, t.Category, t.Status)
}
