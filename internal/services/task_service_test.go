package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adanyl0v/tasktracker/internal/models"
)

// setupTestDB opens an in-memory SQLite database. The pool is
// capped at one connection since every connection to :memory:
// gets its own database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func setupTestService(t *testing.T) (TaskService, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	s := NewTaskService(zerolog.Nop(), db)
	require.NoError(t, s.InitSchema(context.Background()))
	return s, db
}

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

func TestTaskService_InitSchemaIsIdempotent(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, models.NewTask("A", "", ""))
	require.NoError(t, err)

	require.NoError(t, s.InitSchema(ctx))

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, id, tasks[0].ID)
}

func TestTaskService_CreateRoundTrip(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	want := models.Task{
		ID:          42,
		Title:       "Buy milk",
		Description: "two liters",
		Category:    "groceries",
		Status:      models.StatusPending,
		CreatedAt:   time.Date(2024, 5, 1, 10, 20, 30, 123456789, time.UTC),
	}

	id, err := s.CreateTask(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id, "given id must be ignored")

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Category, got.Category)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "want %v, got %v", want.CreatedAt, got.CreatedAt)
}

func TestTaskService_CreateAcceptsEmptyTitle(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, models.NewTask("", "", ""))
	require.NoError(t, err)

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Title)
}

func TestTaskService_GetMissing(t *testing.T) {
	s, _ := setupTestService(t)

	_, err := s.GetTask(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_ListInInsertionOrder(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	for _, title := range []string{"C", "A", "B"} {
		_, err = s.CreateTask(ctx, models.NewTask(title, "", ""))
		require.NoError(t, err)
	}

	tasks, err = s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, titles(tasks))
}

func TestTaskService_IdsAreNeverReused(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	first, err := s.CreateTask(ctx, models.NewTask("A", "", ""))
	require.NoError(t, err)
	second, err := s.CreateTask(ctx, models.NewTask("B", "", ""))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	require.NoError(t, s.DeleteTask(ctx, second))

	third, err := s.CreateTask(ctx, models.NewTask("C", "", ""))
	require.NoError(t, err)
	assert.Greater(t, third, second)
}

func TestTaskService_Update(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	original := models.NewTask("Buy milk", "two liters", "groceries")
	id, err := s.CreateTask(ctx, original)
	require.NoError(t, err)

	t.Run("overwrites every editable field", func(t *testing.T) {
		update := models.Task{
			ID:        id,
			Title:     "Buy oat milk",
			Status:    models.StatusDone,
			CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, s.UpdateTask(ctx, update))

		got, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Buy oat milk", got.Title)
		assert.Empty(t, got.Description)
		assert.Empty(t, got.Category)
		assert.Equal(t, models.StatusDone, got.Status)
		assert.True(t, original.CreatedAt.Equal(got.CreatedAt), "created_at must not change")

		require.NoError(t, s.UpdateTask(ctx, update))
		again, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, got.Title, again.Title)
		assert.Equal(t, got.Status, again.Status)
		assert.True(t, got.CreatedAt.Equal(again.CreatedAt))
	})

	t.Run("missing id is a no-op", func(t *testing.T) {
		before, err := s.ListTasks(ctx)
		require.NoError(t, err)

		err = s.UpdateTask(ctx, models.Task{ID: 9999, Title: "ghost"})
		require.NoError(t, err)

		after, err := s.ListTasks(ctx)
		require.NoError(t, err)
		assert.Equal(t, titles(before), titles(after))
	})
}

func TestTaskService_Delete(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	ids := make(map[string]int64)
	created := make(map[string]time.Time)
	for _, title := range []string{"A", "B", "C"} {
		task := models.NewTask(title, "", "")
		id, err := s.CreateTask(ctx, task)
		require.NoError(t, err)
		ids[title] = id
		created[title] = task.CreatedAt
	}

	require.NoError(t, s.DeleteTask(ctx, ids["B"]))
	require.NoError(t, s.DeleteTask(ctx, ids["B"]), "second delete must be a no-op")
	require.NoError(t, s.DeleteTask(ctx, 9999))

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, titles(tasks))
	for _, task := range tasks {
		assert.Equal(t, ids[task.Title], task.ID)
		assert.True(t, created[task.Title].Equal(task.CreatedAt))
	}
}

func TestTaskService_Search(t *testing.T) {
	s, _ := setupTestService(t)
	ctx := context.Background()

	for _, task := range []models.Task{
		models.NewTask("Buy milk", "", "groceries"),
		models.NewTask("Clean house", "use the new mop", "home"),
		models.NewTask("Buy bread", "", "groceries"),
		models.NewTask("Pay 100% of rent", "", "bills"),
		models.NewTask("snake_case names", "", "code"),
		models.NewTask("Éclair recipe", "", "baking"),
		models.NewTask(`C:\tmp\notes`, "", "files"),
		models.NewTask("tmp cleanup", "", "files"),
	} {
		_, err := s.CreateTask(ctx, task)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "title substring", query: "Buy", want: []string{"Buy milk", "Buy bread"}},
		{name: "no match", query: "xyz", want: []string{}},
		{name: "description substring", query: "mop", want: []string{"Clean house"}},
		{name: "ascii case-insensitive", query: "buy", want: []string{"Buy milk", "Buy bread"}},
		{name: "percent is literal", query: "0%", want: []string{"Pay 100% of rent"}},
		{name: "underscore is literal", query: "e_c", want: []string{"snake_case names"}},
		{name: "non-ascii exact case", query: "É", want: []string{"Éclair recipe"}},
		{name: "non-ascii case-sensitive", query: "é", want: []string{}},
		{name: "backslash is literal", query: `\tmp`, want: []string{`C:\tmp\notes`}},
		{name: "lone backslash", query: `\`, want: []string{`C:\tmp\notes`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchTasks(ctx, tt.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, titles(got))
		})
	}
}

func TestTaskService_ReadsLegacyTimestamps(t *testing.T) {
	s, db := setupTestService(t)
	ctx := context.Background()

	err := db.Exec(
		`INSERT INTO tasks (title, description, category, status, created_at) VALUES (?, NULL, ?, ?, ?)`,
		"Old task", "misc", "Pendiente", "2024-05-01T10:20:30.123456",
	).Error
	require.NoError(t, err)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Description)
	want := time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.Local)
	assert.True(t, want.Equal(tasks[0].CreatedAt))
}

func TestTaskService_MalformedTimestamp(t *testing.T) {
	s, db := setupTestService(t)

	err := db.Exec(`INSERT INTO tasks (title, created_at) VALUES ('broken', 'yesterday')`).Error
	require.NoError(t, err)

	_, err = s.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestTaskService_StorageUnavailable(t *testing.T) {
	s, db := setupTestService(t)
	ctx := context.Background()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = s.CreateTask(ctx, models.NewTask("A", "", ""))
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = s.ListTasks(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	err = s.UpdateTask(ctx, models.Task{ID: 1})
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	err = s.DeleteTask(ctx, 1)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	var storageErr *StorageError
	_, err = s.SearchTasks(ctx, "A")
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "search tasks", storageErr.Op)
}
