package services

import "errors"

var (
	// ErrTaskNotFound is returned for unknown task ids, and by Download for failed tasks
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotReady is returned by Download while the task is PENDING or RUNNING
	ErrTaskNotReady = errors.New("log not ready")
	// ErrArtifactNotFound is returned when no completed generation produced a log for the date
	ErrArtifactNotFound = errors.New("log not found")
	// ErrInvalidTransition signals an attempted illegal task state change
	ErrInvalidTransition = errors.New("invalid task transition")
	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD
	ErrInvalidDate = errors.New("invalid date")
	// ErrQueueFull is returned by Submit when the worker pool queue has no room
	ErrQueueFull = errors.New("generation queue is full")
	// ErrShuttingDown is returned by Submit once the service started shutting down
	ErrShuttingDown = errors.New("service is shutting down")
)
