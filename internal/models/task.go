package models

import "time"

// TaskStatus represents the status of a log generation task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Valid reports whether s is one of the known statuses
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed from s
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one request to generate the activity log for a date
type Task struct {
	ID           string     `json:"taskId"`
	Date         string     `json:"date"` // YYYY-MM-DD
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Artifact is the generated log payload for one date
type Artifact struct {
	Date      string    `json:"date"`
	Payload   []byte    `json:"-"`
	WrittenAt time.Time `json:"writtenAt"`
}

// TaskFilter narrows ListTasks results. Zero values match everything.
type TaskFilter struct {
	Date   string
	Status TaskStatus
}

// Matches reports whether task satisfies the filter
func (f TaskFilter) Matches(task *Task) bool {
	if f.Date != "" && task.Date != f.Date {
		return false
	}
	if f.Status != "" && task.Status != f.Status {
		return false
	}
	return true
}
