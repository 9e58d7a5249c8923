package database

import (
	"context"
	"fmt"

	"activity-logs/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLTaskRepository persists tasks through gorm
type SQLTaskRepository struct {
	db *gorm.DB
}

// NewSQLTaskRepository creates a task repository on db
func NewSQLTaskRepository(db *gorm.DB) *SQLTaskRepository {
	return &SQLTaskRepository{db: db}
}

// SaveTask inserts or fully updates the record for task
func (r *SQLTaskRepository) SaveTask(ctx context.Context, task *models.Task) error {
	record := newTaskRecord(task)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error_message", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (r *SQLTaskRepository) DeleteTask(ctx context.Context, taskID string) error {
	if err := r.db.WithContext(ctx).Delete(&TaskRecord{}, "id = ?", taskID).Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// LoadTasks returns every stored task, oldest first
func (r *SQLTaskRepository) LoadTasks(ctx context.Context) ([]models.Task, error) {
	var records []TaskRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	tasks := make([]models.Task, len(records))
	for i, record := range records {
		tasks[i] = record.toModel()
	}
	return tasks, nil
}
