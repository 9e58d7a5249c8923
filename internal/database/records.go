package database

import (
	"time"

	"activity-logs/internal/models"
)

// TaskRecord is the persisted form of a models.Task
type TaskRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Date         string    `gorm:"size:10;not null;index"`
	Status       string    `gorm:"size:16;not null;index"`
	ErrorMessage string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (TaskRecord) TableName() string {
	return "log_tasks"
}

func newTaskRecord(task *models.Task) TaskRecord {
	return TaskRecord{
		ID:           task.ID,
		Date:         task.Date,
		Status:       string(task.Status),
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}

func (r TaskRecord) toModel() models.Task {
	return models.Task{
		ID:           r.ID,
		Date:         r.Date,
		Status:       models.TaskStatus(r.Status),
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ArtifactRecord stores one generated log per date
type ArtifactRecord struct {
	Date      string    `gorm:"primaryKey;size:10"`
	Payload   []byte    `gorm:"not null"`
	WrittenAt time.Time `gorm:"not null;index"`
}

// TableName specifies the table name
func (ArtifactRecord) TableName() string {
	return "log_artifacts"
}
