package models

import "time"

// GenerateLogRequest is the optional JSON body of POST /api/logs/generate.
// The date may also be passed as the "date" query parameter.
type GenerateLogRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// TaskResponse represents the response when creating a task
type TaskResponse struct {
	TaskID string `json:"taskId"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

// StatusResponse represents the response when checking task status
type StatusResponse struct {
	TaskID       string `json:"taskId"`
	Date         string `json:"date"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt"` // RFC 3339
	UpdatedAt    string `json:"updatedAt"` // RFC 3339
}

// TaskListResponse wraps GET /api/logs/tasks results
type TaskListResponse struct {
	Tasks []StatusResponse `json:"tasks"`
}

// NewStatusResponse converts a task into its wire representation
func NewStatusResponse(task *Task) StatusResponse {
	return StatusResponse{
		TaskID:       task.ID,
		Date:         task.Date,
		Status:       string(task.Status),
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    task.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
