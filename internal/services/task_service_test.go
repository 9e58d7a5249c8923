package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"activity-logs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTaskRepository records saved tasks and can be told to fail
type fakeTaskRepository struct {
	mu      sync.Mutex
	tasks   map[string]models.Task
	saveErr error
	loadErr error
	// failStatus makes SaveTask fail only for records in this status
	failStatus models.TaskStatus
}

func newFakeTaskRepository() *fakeTaskRepository {
	return &fakeTaskRepository{tasks: make(map[string]models.Task)}
}

func (r *fakeTaskRepository) SaveTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.failStatus != "" && task.Status == r.failStatus {
		return errors.New("disk full")
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepository) DeleteTask(ctx context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
	return nil
}

func (r *fakeTaskRepository) LoadTasks(ctx context.Context) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	tasks := make([]models.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *fakeTaskRepository) get(id string) (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	return task, ok
}

func TestTaskServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create PENDING tasks with unique ids", func(t *testing.T) {
		svc := NewTaskService(nil)

		first, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)
		second, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, models.TaskStatusPending, first.Status)
		assert.Equal(t, "2024-01-15", first.Date)
		assert.Empty(t, first.ErrorMessage)
	})

	t.Run("Should return copies of stored tasks", func(t *testing.T) {
		svc := NewTaskService(nil)
		created, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)

		created.Status = models.TaskStatusCompleted
		fetched, err := svc.GetTask(created.ID)
		require.NoError(t, err)
		fetched.Date = "1999-01-01"

		again, err := svc.GetTask(created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusPending, again.Status)
		assert.Equal(t, "2024-01-15", again.Date)
	})

	t.Run("Should return ErrTaskNotFound for unknown ids", func(t *testing.T) {
		svc := NewTaskService(nil)

		_, err := svc.GetTask("missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)

		_, err = svc.Transition(ctx, "missing", models.TaskStatusRunning, "")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskServiceTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		path    []models.TaskStatus
		to      models.TaskStatus
		allowed bool
	}{
		{"pending to running", nil, models.TaskStatusRunning, true},
		{"pending to failed", nil, models.TaskStatusFailed, true},
		{"pending to completed", nil, models.TaskStatusCompleted, false},
		{"pending to pending", nil, models.TaskStatusPending, false},
		{"running to completed", []models.TaskStatus{models.TaskStatusRunning}, models.TaskStatusCompleted, true},
		{"running to failed", []models.TaskStatus{models.TaskStatusRunning}, models.TaskStatusFailed, true},
		{"running to pending", []models.TaskStatus{models.TaskStatusRunning}, models.TaskStatusPending, false},
		{"completed to running", []models.TaskStatus{models.TaskStatusRunning, models.TaskStatusCompleted}, models.TaskStatusRunning, false},
		{"completed to failed", []models.TaskStatus{models.TaskStatusRunning, models.TaskStatusCompleted}, models.TaskStatusFailed, false},
		{"failed to pending", []models.TaskStatus{models.TaskStatusFailed}, models.TaskStatusPending, false},
		{"failed to completed", []models.TaskStatus{models.TaskStatusFailed}, models.TaskStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTaskService(nil)
			task, err := svc.CreateTask(ctx, "2024-01-15")
			require.NoError(t, err)

			for _, step := range tt.path {
				_, err := svc.Transition(ctx, task.ID, step, "boom")
				require.NoError(t, err)
			}

			before, err := svc.GetTask(task.ID)
			require.NoError(t, err)

			_, err = svc.Transition(ctx, task.ID, tt.to, "boom")
			if tt.allowed {
				require.NoError(t, err)
				after, err := svc.GetTask(task.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.to, after.Status)
				return
			}

			assert.ErrorIs(t, err, ErrInvalidTransition)
			after, err := svc.GetTask(task.ID)
			require.NoError(t, err)
			assert.Equal(t, *before, *after, "rejected transition must not change the task")
		})
	}

	t.Run("Should substitute a message for FAILED without one", func(t *testing.T) {
		svc := NewTaskService(nil)
		task, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)

		failed, err := svc.Transition(ctx, task.ID, models.TaskStatusFailed, "")
		require.NoError(t, err)
		assert.NotEmpty(t, failed.ErrorMessage)
	})

	t.Run("Should only keep error messages on FAILED", func(t *testing.T) {
		svc := NewTaskService(nil)
		task, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)

		running, err := svc.Transition(ctx, task.ID, models.TaskStatusRunning, "ignored")
		require.NoError(t, err)
		assert.Empty(t, running.ErrorMessage)
	})
}

func TestTaskServiceListAndDiscard(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(nil)

	var ids []string
	for _, date := range []string{"2024-01-03", "2024-01-01", "2024-01-02", "2024-01-01"} {
		task, err := svc.CreateTask(ctx, date)
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	_, err := svc.Transition(ctx, ids[1], models.TaskStatusRunning, "")
	require.NoError(t, err)

	t.Run("Should list in submission order", func(t *testing.T) {
		all := svc.ListTasks(models.TaskFilter{})
		require.Len(t, all, 4)
		for i, task := range all {
			assert.Equal(t, ids[i], task.ID)
		}
	})

	t.Run("Should filter by date and status", func(t *testing.T) {
		byDate := svc.ListTasks(models.TaskFilter{Date: "2024-01-01"})
		require.Len(t, byDate, 2)
		assert.Equal(t, ids[1], byDate[0].ID)
		assert.Equal(t, ids[3], byDate[1].ID)

		running := svc.ListTasks(models.TaskFilter{Status: models.TaskStatusRunning})
		require.Len(t, running, 1)
		assert.Equal(t, ids[1], running[0].ID)
	})

	t.Run("Should discard only PENDING tasks", func(t *testing.T) {
		assert.ErrorIs(t, svc.Discard(ctx, ids[1]), ErrInvalidTransition)

		require.NoError(t, svc.Discard(ctx, ids[0]))
		_, err := svc.GetTask(ids[0])
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskServicePurge(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(nil)

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base
	svc.now = func() time.Time { return current }

	completed, err := svc.CreateTask(ctx, "2024-01-14")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, completed.ID, models.TaskStatusRunning, "")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, completed.ID, models.TaskStatusCompleted, "")
	require.NoError(t, err)

	pinned, err := svc.CreateTask(ctx, "2024-01-14")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, pinned.ID, models.TaskStatusFailed, "boom")
	require.NoError(t, err)

	pending, err := svc.CreateTask(ctx, "2024-01-14")
	require.NoError(t, err)

	current = base.Add(2 * time.Hour)
	fresh, err := svc.CreateTask(ctx, "2024-01-15")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, fresh.ID, models.TaskStatusFailed, "boom")
	require.NoError(t, err)

	_, err = svc.Acquire(pinned.ID)
	require.NoError(t, err)

	purged, err := svc.Purge(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = svc.GetTask(completed.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound, "old terminal task should be purged")
	_, err = svc.GetTask(pinned.ID)
	assert.NoError(t, err, "task with an active download must survive")
	_, err = svc.GetTask(pending.ID)
	assert.NoError(t, err, "non-terminal task must survive")
	_, err = svc.GetTask(fresh.ID)
	assert.NoError(t, err, "recent task must survive")

	svc.Release(pinned.ID)
	purged, err = svc.Purge(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	_, err = svc.GetTask(pinned.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskServicePersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("Should write through to the repository", func(t *testing.T) {
		repo := newFakeTaskRepository()
		svc := NewTaskService(repo)

		task, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)
		_, err = svc.Transition(ctx, task.ID, models.TaskStatusRunning, "")
		require.NoError(t, err)

		stored, ok := repo.get(task.ID)
		require.True(t, ok)
		assert.Equal(t, models.TaskStatusRunning, stored.Status)
	})

	t.Run("Should leave memory untouched when the repository fails", func(t *testing.T) {
		repo := newFakeTaskRepository()
		svc := NewTaskService(repo)

		task, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)

		repo.saveErr = errors.New("disk full")
		_, err = svc.Transition(ctx, task.ID, models.TaskStatusRunning, "")
		require.Error(t, err)

		current, err := svc.GetTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusPending, current.Status)

		_, err = svc.CreateTask(ctx, "2024-01-16")
		require.Error(t, err)
		assert.Len(t, svc.ListTasks(models.TaskFilter{}), 1)
	})

	t.Run("Should fail interrupted tasks on restore", func(t *testing.T) {
		repo := newFakeTaskRepository()
		created := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
		repo.tasks["done"] = models.Task{ID: "done", Date: "2024-01-14", Status: models.TaskStatusCompleted, CreatedAt: created}
		repo.tasks["queued"] = models.Task{ID: "queued", Date: "2024-01-15", Status: models.TaskStatusPending, CreatedAt: created.Add(time.Minute)}
		repo.tasks["busy"] = models.Task{ID: "busy", Date: "2024-01-15", Status: models.TaskStatusRunning, CreatedAt: created.Add(2 * time.Minute)}

		svc := NewTaskService(repo)
		restored, err := svc.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, restored)

		done, err := svc.GetTask("done")
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, done.Status)

		for _, id := range []string{"queued", "busy"} {
			task, err := svc.GetTask(id)
			require.NoError(t, err)
			assert.Equal(t, models.TaskStatusFailed, task.Status)
			assert.Equal(t, restartFailureMessage, task.ErrorMessage)

			stored, _ := repo.get(id)
			assert.Equal(t, models.TaskStatusFailed, stored.Status)
		}

		list := svc.ListTasks(models.TaskFilter{})
		require.Len(t, list, 3)
		assert.Equal(t, "done", list[0].ID)
		assert.Equal(t, "busy", list[2].ID)
	})

	t.Run("Should report load errors", func(t *testing.T) {
		repo := newFakeTaskRepository()
		repo.loadErr = errors.New("connection refused")

		_, err := NewTaskService(repo).Restore(ctx)
		assert.Error(t, err)
	})
}

func TestTaskServiceConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := svc.CreateTask(ctx, "2024-01-15")
			if !assert.NoError(t, err) {
				return
			}
			_, err = svc.Transition(ctx, task.ID, models.TaskStatusRunning, "")
			assert.NoError(t, err)
			_, err = svc.GetTask(task.ID)
			assert.NoError(t, err)
			_, err = svc.Transition(ctx, task.ID, models.TaskStatusCompleted, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, svc.ListTasks(models.TaskFilter{Status: models.TaskStatusCompleted}), 20)
}

func TestTaskServiceFinish(t *testing.T) {
	ctx := context.Background()

	t.Run("Should apply the terminal status when persisting it fails", func(t *testing.T) {
		repo := newFakeTaskRepository()
		repo.failStatus = models.TaskStatusCompleted
		svc := NewTaskService(repo)

		task, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)
		_, err = svc.Transition(ctx, task.ID, models.TaskStatusRunning, "")
		require.NoError(t, err)

		finished, err := svc.Finish(ctx, task.ID, models.TaskStatusCompleted, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		require.NotNil(t, finished)
		assert.Equal(t, models.TaskStatusCompleted, finished.Status)

		current, err := svc.GetTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, current.Status)

		persisted, ok := repo.get(task.ID)
		require.True(t, ok)
		assert.Equal(t, models.TaskStatusRunning, persisted.Status, "stale row is left for Restore")
	})

	t.Run("Should still enforce the state machine", func(t *testing.T) {
		svc := NewTaskService(nil)
		task, err := svc.CreateTask(ctx, "2024-01-15")
		require.NoError(t, err)

		_, err = svc.Finish(ctx, task.ID, models.TaskStatusCompleted, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = svc.Finish(ctx, task.ID, models.TaskStatusRunning, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = svc.Finish(ctx, "missing", models.TaskStatusFailed, "x")
		assert.ErrorIs(t, err, ErrTaskNotFound)

		failed, err := svc.Finish(ctx, task.ID, models.TaskStatusFailed, "")
		require.NoError(t, err)
		assert.Equal(t, defaultFailureMessage, failed.ErrorMessage)
	})
}

func TestTaskServiceWhileDateIdle(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(nil)

	calls := 0
	fn := func() error { calls++; return nil }

	ran, err := svc.WhileDateIdle("2024-01-15", fn)
	require.NoError(t, err)
	assert.True(t, ran)

	task, err := svc.CreateTask(ctx, "2024-01-15")
	require.NoError(t, err)
	ran, err = svc.WhileDateIdle("2024-01-15", fn)
	require.NoError(t, err)
	assert.False(t, ran, "pending task keeps the date busy")

	_, err = svc.Transition(ctx, task.ID, models.TaskStatusFailed, "boom")
	require.NoError(t, err)
	ran, err = svc.WhileDateIdle("2024-01-15", func() error { calls++; return errors.New("delete failed") })
	assert.True(t, ran)
	assert.EqualError(t, err, "delete failed")
	assert.Equal(t, 2, calls)
}
