package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"activity-logs/internal/models"
	"activity-logs/internal/utils"
	"activity-logs/internal/workerpool"
)

const shutdownFailureMessage = "service shutting down before generation started"

// LogService is the request facade: it submits generation tasks to the worker
// pool and serves their status and artifacts
type LogService struct {
	tasks     *TaskService
	store     ArtifactStore
	generator Generator
	pool      *workerpool.Pool
	timeout   time.Duration
	drain     bool
}

// NewLogService wires the registry, artifact store, generator and worker pool.
// timeout bounds a single generation; 0 disables it.
func NewLogService(tasks *TaskService, store ArtifactStore, generator Generator, pool *workerpool.Pool, timeout time.Duration) *LogService {
	return &LogService{
		tasks:     tasks,
		store:     store,
		generator: generator,
		pool:      pool,
		timeout:   timeout,
	}
}

// SetDrainOnShutdown makes Shutdown run every queued task before stopping
// rather than failing the queue. Shutdown still cancels whatever is left when
// its context expires.
func (s *LogService) SetDrainOnShutdown(drain bool) {
	s.drain = drain
}

// Submit creates a task for date and queues it without waiting for generation
func (s *LogService) Submit(ctx context.Context, date string) (*models.Task, error) {
	normalized, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	if !s.pool.IsRunning() {
		return nil, ErrShuttingDown
	}

	task, err := s.tasks.CreateTask(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	taskID := task.ID
	err = s.pool.Submit(func(workerCtx context.Context) {
		s.runTask(workerCtx, taskID, normalized)
	})
	if err != nil {
		if discardErr := s.tasks.Discard(ctx, taskID); discardErr != nil {
			log.Printf("WARNING: Failed to discard rejected task %s: %v", taskID, discardErr)
		}
		if errors.Is(err, workerpool.ErrQueueFull) {
			log.Printf("WARNING: Rejected log generation for %s: %d tasks already queued", normalized, s.pool.QueueLength())
			return nil, ErrQueueFull
		}
		return nil, ErrShuttingDown
	}

	log.Printf("Queued log generation task %s for %s", taskID, normalized)
	return task, nil
}

// Status returns the current state of a task
func (s *LogService) Status(taskID string) (*models.Task, error) {
	return s.tasks.GetTask(taskID)
}

// View returns the latest generated log for date. It never triggers generation.
func (s *LogService) View(ctx context.Context, date string) (*models.Artifact, error) {
	normalized, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return s.store.Read(ctx, normalized)
}

// DownloadByDate returns the same artifact as View, for attachment responses
func (s *LogService) DownloadByDate(ctx context.Context, date string) (*models.Artifact, error) {
	return s.View(ctx, date)
}

// Download returns the artifact produced for a task's date.
// Queued or running tasks yield ErrTaskNotReady; unknown or failed tasks yield ErrTaskNotFound.
func (s *LogService) Download(ctx context.Context, taskID string) (*models.Task, *models.Artifact, error) {
	task, err := s.tasks.Acquire(taskID)
	if err != nil {
		return nil, nil, err
	}
	defer s.tasks.Release(taskID)

	switch task.Status {
	case models.TaskStatusPending, models.TaskStatusRunning:
		return task, nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotReady, taskID, task.Status)
	case models.TaskStatusFailed:
		return task, nil, fmt.Errorf("%w: task %s failed", ErrTaskNotFound, taskID)
	}

	artifact, err := s.store.Read(ctx, task.Date)
	if err != nil {
		return task, nil, err
	}
	return task, artifact, nil
}

// ListTasks returns the known tasks matching filter in submission order
func (s *LogService) ListTasks(filter models.TaskFilter) ([]models.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown task status %q", filter.Status)
	}
	if filter.Date != "" {
		normalized, err := utils.NormalizeDate(filter.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
		filter.Date = normalized
	}
	return s.tasks.ListTasks(filter), nil
}

// Shutdown stops the worker pool and fails every task that was still waiting
// in the queue. Running generations are cancelled, unless drain mode is on, in
// which case the queue is worked off first for as long as ctx allows.
func (s *LogService) Shutdown(ctx context.Context) error {
	var discarded int
	if s.drain {
		discarded = s.drainPool(ctx)
	} else {
		discarded = s.pool.Stop()
	}
	if discarded > 0 {
		log.Printf("Discarded %d queued log generation tasks", discarded)
	}

	var firstErr error
	for _, task := range s.tasks.ListTasks(models.TaskFilter{Status: models.TaskStatusPending}) {
		if _, err := s.tasks.Finish(ctx, task.ID, models.TaskStatusFailed, shutdownFailureMessage); err != nil {
			log.Printf("ERROR: Failed to mark task %s as failed on shutdown: %v", task.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *LogService) drainPool(ctx context.Context) int {
	log.Printf("Draining %d queued log generation tasks", s.pool.QueueLength())

	drained := make(chan struct{})
	go func() {
		s.pool.StopWait()
		close(drained)
	}()

	select {
	case <-drained:
		return 0
	case <-ctx.Done():
		log.Printf("WARNING: Drain interrupted: %v", ctx.Err())
		discarded := s.pool.Stop()
		<-drained
		return discarded
	}
}

// runTask is the worker step for one task
func (s *LogService) runTask(ctx context.Context, taskID, date string) {
	// Status writes must land even when the pool context is cancelled mid-generation
	recordCtx := context.WithoutCancel(ctx)

	if _, err := s.tasks.Transition(recordCtx, taskID, models.TaskStatusRunning, ""); err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrInvalidTransition) {
			log.Printf("Skipping task %s: %v", taskID, err)
			return
		}
		// Still PENDING with nothing left in the queue for it
		log.Printf("ERROR: Failed to record start of task %s: %v", taskID, err)
		s.fail(recordCtx, taskID, fmt.Sprintf("failed to record task start: %v", err))
		return
	}
	log.Printf("Starting log generation for task %s (%s)", taskID, date)

	payload, err := s.generate(ctx, date)
	if err != nil {
		log.Printf("WARNING: Log generation failed for task %s: %v", taskID, err)
		s.fail(recordCtx, taskID, err.Error())
		return
	}

	if err := s.store.Write(recordCtx, date, payload); err != nil {
		log.Printf("ERROR: Failed to store log for task %s: %v", taskID, err)
		s.fail(recordCtx, taskID, fmt.Sprintf("failed to store log: %v", err))
		return
	}

	task, err := s.tasks.Finish(recordCtx, taskID, models.TaskStatusCompleted, "")
	if err != nil {
		log.Printf("ERROR: Failed to record completion of task %s: %v", taskID, err)
		if task == nil {
			return
		}
	}
	log.Printf("Log generation completed for task %s (%d bytes)", taskID, len(payload))
}

func (s *LogService) generate(ctx context.Context, date string) (payload []byte, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Log generator panicked: %v\n%s", r, debug.Stack())
			payload = nil
			err = fmt.Errorf("log generator panicked: %v", r)
		}
	}()

	payload, err = s.generator.Generate(ctx, date)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *LogService) fail(ctx context.Context, taskID, message string) {
	if _, err := s.tasks.Finish(ctx, taskID, models.TaskStatusFailed, message); err != nil {
		log.Printf("ERROR: Failed to record failure of task %s: %v", taskID, err)
	}
}
