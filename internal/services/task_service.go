package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/adanyl0v/tasktracker/internal/models"
)

const timestampLayout = time.RFC3339Nano

// Layouts accepted when reading created_at. The second one is
// what tasks.db files written by earlier versions contain.
var timestampLayouts = []string{
	timestampLayout,
	"2006-01-02T15:04:05.999999999",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type taskRow struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	Title       string         `gorm:"column:title"`
	Description sql.NullString `gorm:"column:description"`
	Category    sql.NullString `gorm:"column:category"`
	Status      sql.NullString `gorm:"column:status"`
	CreatedAt   string         `gorm:"column:created_at;autoCreateTime:false"`
}

func (taskRow) TableName() string {
	return "tasks"
}

func newTaskRow(task models.Task) taskRow {
	return taskRow{
		Title:       task.Title,
		Description: sql.NullString{String: task.Description, Valid: true},
		Category:    sql.NullString{String: task.Category, Valid: true},
		Status:      sql.NullString{String: task.Status, Valid: true},
		CreatedAt:   task.CreatedAt.Format(timestampLayout),
	}
}

func (r taskRow) toModel() (models.Task, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", r.ID, err)
	}

	return models.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description.String,
		Category:    r.Category.String,
		Status:      r.Status.String,
		CreatedAt:   createdAt,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed created_at %q", s)
}

type taskServiceImpl struct {
	logger zerolog.Logger
	db     *gorm.DB
	// Guards db. The store holds a single connection.
	mu sync.Mutex
}

func NewTaskService(
	logger zerolog.Logger,
	db *gorm.DB,
) TaskService {
	return &taskServiceImpl{
		logger: logger,
		db:     db,
	}
}

func (s *taskServiceImpl) InitSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const createTasksTableQuery = `
CREATE TABLE IF NOT EXISTS tasks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    title       TEXT NOT NULL,
    description TEXT,
    category    TEXT,
    status      TEXT,
    created_at  TEXT
)
`
	err := s.db.WithContext(ctx).Exec(createTasksTableQuery).Error
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to create tasks table")
		return newStorageError("create tasks table", err)
	}

	s.logger.Debug().Msg("initialized tasks table")
	return nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, task models.Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := newTaskRow(task)
	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return 0, newStorageError("insert task", err)
	}

	s.logger.Info().
		Int64("task_id", row.ID).
		Msg("created task")
	return row.ID, nil
}

func (s *taskServiceImpl) ListTasks(ctx context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []taskRow
	err := s.db.WithContext(ctx).
		Order("id").
		Find(&rows).Error
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select tasks")
		return nil, newStorageError("select tasks", err)
	}

	tasks, err := s.decodeRows(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("count", len(tasks)).
		Msg("selected tasks")
	return tasks, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, id int64) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row taskRow
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().
				Int64("task_id", id).
				Msg("task not found")
			return models.Task{}, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to select task")
		return models.Task{}, newStorageError("select task", err)
	}

	task, err := row.toModel()
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to decode task")
		return models.Task{}, newStorageError("decode task", err)
	}
	return task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A map is used so empty strings are written too.
	result := s.db.WithContext(ctx).
		Model(&taskRow{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":       task.Title,
			"description": task.Description,
			"category":    task.Category,
			"status":      task.Status,
		})
	if result.Error != nil {
		s.logger.Error().
			Err(result.Error).
			Int64("task_id", task.ID).
			Msg("failed to update task")
		return newStorageError("update task", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug().
			Int64("task_id", task.ID).
			Msg("no task to update")
		return nil
	}

	s.logger.Info().
		Int64("task_id", task.ID).
		Msg("updated task")
	return nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&taskRow{})
	if result.Error != nil {
		s.logger.Error().
			Err(result.Error).
			Int64("task_id", id).
			Msg("failed to delete task")
		return newStorageError("delete task", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug().
			Int64("task_id", id).
			Msg("no task to delete")
		return nil
	}

	s.logger.Info().
		Int64("task_id", id).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) SearchTasks(ctx context.Context, query string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pattern := "%" + likeEscaper.Replace(query) + "%"

	var rows []taskRow
	err := s.db.WithContext(ctx).
		Where(`title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("id").
		Find(&rows).Error
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("query", query).
			Msg("failed to search tasks")
		return nil, newStorageError("search tasks", err)
	}

	tasks, err := s.decodeRows(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("count", len(tasks)).
		Str("query", query).
		Msg("searched tasks")
	return tasks, nil
}

func (s *taskServiceImpl) decodeRows(rows []taskRow) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		task, err := row.toModel()
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("task_id", row.ID).
				Msg("failed to decode task")
			return nil, newStorageError("decode task", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
