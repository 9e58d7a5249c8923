package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"activity-logs/internal/models"
	"activity-logs/internal/utils"
)

const (
	defaultFailureMessage = "log generation failed"
	restartFailureMessage = "interrupted by service restart"
)

// TaskRepository persists task records so they survive restarts
type TaskRepository interface {
	SaveTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	LoadTasks(ctx context.Context) ([]models.Task, error)
}

type taskEntry struct {
	task models.Task
	seq  uint64 // creation order, breaks CreatedAt ties
	refs int    // active downloads
}

// TaskService is the task registry: the single source of truth for task status.
// Callers only ever receive copies of the stored records.
type TaskService struct {
	tasks   map[string]*taskEntry
	mutex   sync.RWMutex
	nextSeq uint64
	repo    TaskRepository
	now     func() time.Time
}

// NewTaskService creates a new task registry. repo may be nil for a purely
// in-memory registry.
func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{
		tasks: make(map[string]*taskEntry),
		repo:  repo,
		now:   time.Now,
	}
}

// CreateTask inserts a new PENDING task for date and returns it
func (s *TaskService) CreateTask(ctx context.Context, date string) (*models.Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	task := models.Task{
		ID:        utils.GenerateUUID(),
		Date:      date,
		Status:    models.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.save(ctx, &task); err != nil {
		return nil, err
	}

	s.nextSeq++
	s.tasks[task.ID] = &taskEntry{task: task, seq: s.nextSeq}
	return &task, nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(taskID string) (*models.Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	task := entry.task
	return &task, nil
}

// Transition moves a task to status. errorMessage is only kept for FAILED.
func (s *TaskService) Transition(ctx context.Context, taskID string, status models.TaskStatus, errorMessage string) (*models.Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if !validTransition(entry.task.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s for task %s", ErrInvalidTransition, entry.task.Status, status, taskID)
	}

	updated := s.next(entry.task, status, errorMessage)
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	entry.task = updated
	return &updated, nil
}

// Finish moves a task to a terminal status. Unlike Transition, a repository
// failure does not leave the task unfinished: the new status is applied in
// memory and the persistence error is returned alongside the updated task.
// Restore fails the stale persisted row on the next start.
func (s *TaskService) Finish(ctx context.Context, taskID string, status models.TaskStatus, errorMessage string) (*models.Task, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, status)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if !validTransition(entry.task.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s for task %s", ErrInvalidTransition, entry.task.Status, status, taskID)
	}

	updated := s.next(entry.task, status, errorMessage)
	saveErr := s.save(ctx, &updated)

	entry.task = updated
	return &updated, saveErr
}

// WhileDateIdle runs fn only if no task that may still write or serve the
// artifact for date is registered, i.e. every task for date has FAILED.
// The registry stays locked while fn runs, so no task for date can be created
// meanwhile. It reports whether fn ran.
func (s *TaskService) WhileDateIdle(date string, fn func() error) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, entry := range s.tasks {
		if entry.task.Date == date && entry.task.Status != models.TaskStatusFailed {
			return false, nil
		}
	}
	return true, fn()
}

// ListTasks returns the tasks matching filter in submission order
func (s *TaskService) ListTasks(filter models.TaskFilter) []models.Task {
	s.mutex.RLock()
	entries := make([]*taskEntry, 0, len(s.tasks))
	for _, entry := range s.tasks {
		if filter.Matches(&entry.task) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	tasks := make([]models.Task, len(entries))
	for i, entry := range entries {
		tasks[i] = entry.task
	}
	s.mutex.RUnlock()

	return tasks
}

// Discard removes a task that never left PENDING, used when its work could not be enqueued
func (s *TaskService) Discard(ctx context.Context, taskID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if entry.task.Status != models.TaskStatusPending {
		return fmt.Errorf("%w: cannot discard %s task %s", ErrInvalidTransition, entry.task.Status, taskID)
	}

	if err := s.remove(ctx, taskID); err != nil {
		return err
	}
	delete(s.tasks, taskID)
	return nil
}

// Acquire returns the task and pins it against retention until Release is called
func (s *TaskService) Acquire(taskID string) (*models.Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	entry.refs++

	task := entry.task
	return &task, nil
}

// Release drops a reference taken by Acquire
func (s *TaskService) Release(taskID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entry, exists := s.tasks[taskID]; exists && entry.refs > 0 {
		entry.refs--
	}
}

// Purge deletes terminal tasks created before cutoff that have no active download.
// It returns the number of tasks removed.
func (s *TaskService) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	purged := 0
	for id, entry := range s.tasks {
		if !entry.task.Status.Terminal() || entry.refs > 0 || !entry.task.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.remove(ctx, id); err != nil {
			return purged, err
		}
		delete(s.tasks, id)
		purged++
	}
	return purged, nil
}

// Restore loads persisted tasks into the registry. Tasks that were still
// PENDING or RUNNING when the previous process stopped are marked FAILED,
// since their queued work did not survive.
func (s *TaskService) Restore(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}

	tasks, err := s.repo.LoadTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i := range tasks {
		task := tasks[i]
		if !task.Status.Terminal() {
			task.Status = models.TaskStatusFailed
			task.ErrorMessage = restartFailureMessage
			task.UpdatedAt = s.now()
			if err := s.save(ctx, &task); err != nil {
				return i, err
			}
			log.Printf("WARNING: Task %s for %s was interrupted by restart, marked FAILED", task.ID, task.Date)
		}
		s.nextSeq++
		s.tasks[task.ID] = &taskEntry{task: task, seq: s.nextSeq}
	}
	return len(tasks), nil
}

// next returns task moved to status. errorMessage is only kept for FAILED.
func (s *TaskService) next(task models.Task, status models.TaskStatus, errorMessage string) models.Task {
	task.Status = status
	task.UpdatedAt = s.now()
	task.ErrorMessage = ""
	if status == models.TaskStatusFailed {
		task.ErrorMessage = errorMessage
		if task.ErrorMessage == "" {
			task.ErrorMessage = defaultFailureMessage
		}
	}
	return task
}

func (s *TaskService) save(ctx context.Context, task *models.Task) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to persist task %s: %w", task.ID, err)
	}
	return nil
}

func (s *TaskService) remove(ctx context.Context, taskID string) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	return nil
}

// validTransition encodes the task state machine. PENDING -> FAILED is only
// used when the pool stops before a queued task was picked up.
func validTransition(from, to models.TaskStatus) bool {
	switch from {
	case models.TaskStatusPending:
		return to == models.TaskStatusRunning || to == models.TaskStatusFailed
	case models.TaskStatusRunning:
		return to == models.TaskStatusCompleted || to == models.TaskStatusFailed
	default:
		return false
	}
}
