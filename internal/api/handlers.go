package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"activity-logs/internal/models"
	"activity-logs/internal/services"
	"activity-logs/internal/validation"

	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is suggested to clients polling a log that is not ready yet
const retryAfterSeconds = "5"

// LogService is the facade the handlers translate HTTP requests to
type LogService interface {
	Submit(ctx context.Context, date string) (*models.Task, error)
	Status(taskID string) (*models.Task, error)
	View(ctx context.Context, date string) (*models.Artifact, error)
	Download(ctx context.Context, taskID string) (*models.Task, *models.Artifact, error)
	DownloadByDate(ctx context.Context, date string) (*models.Artifact, error)
	ListTasks(filter models.TaskFilter) ([]models.Task, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logService LogService
}

// NewHandlers creates a new handlers instance
func NewHandlers(logService LogService) *Handlers {
	return &Handlers{logService: logService}
}

// GenerateLogHandler handles POST /api/logs/generate
// The date comes from the "date" query parameter or a JSON body {"date": "..."}
func (h *Handlers) GenerateLogHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" && c.Request.ContentLength != 0 {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if len(body) > 0 {
			req, err := validation.ParseGenerateRequest(body)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			date = req.Date
		}
	}
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	task, err := h.logService.Submit(c.Request.Context(), date)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrQueueFull), errors.Is(err, services.ErrShuttingDown):
			c.Header("Retry-After", retryAfterSeconds)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			log.Printf("ERROR: Failed to submit log generation for %s: %v", date, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		}
		return
	}

	c.JSON(http.StatusAccepted, models.TaskResponse{
		TaskID: task.ID,
		Date:   task.Date,
		Status: string(task.Status),
	})
}

// GetTaskStatusHandler handles GET /api/logs/status/:taskId
func (h *Handlers) GetTaskStatusHandler(c *gin.Context) {
	taskID := c.Param("taskId")

	task, err := h.logService.Status(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, models.NewStatusResponse(task))
}

// ViewLogHandler handles GET /api/logs/view?date=YYYY-MM-DD
func (h *Handlers) ViewLogHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	artifact, err := h.logService.View(c.Request.Context(), date)
	if err != nil {
		h.writeArtifactError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", artifact.Payload)
}

// DownloadTaskLogHandler handles GET /api/logs/download/:taskId
func (h *Handlers) DownloadTaskLogHandler(c *gin.Context) {
	taskID := c.Param("taskId")

	task, artifact, err := h.logService.Download(c.Request.Context(), taskID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotReady):
			c.Header("Retry-After", retryAfterSeconds)
			c.JSON(http.StatusConflict, gin.H{"error": "log not ready", "status": string(task.Status)})
		case errors.Is(err, services.ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "log not found for task"})
		default:
			h.writeArtifactError(c, err)
		}
		return
	}

	attachment(c, fmt.Sprintf("task-%s-%s.log", task.ID, task.Date), artifact.Payload)
}

// DownloadLogByDateHandler handles GET /api/logs/download?date=YYYY-MM-DD
func (h *Handlers) DownloadLogByDateHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	artifact, err := h.logService.DownloadByDate(c.Request.Context(), date)
	if err != nil {
		h.writeArtifactError(c, err)
		return
	}

	attachment(c, fmt.Sprintf("employee-management-%s.log", artifact.Date), artifact.Payload)
}

// ListTasksHandler handles GET /api/logs/tasks?date=&status=
func (h *Handlers) ListTasksHandler(c *gin.Context) {
	filter := models.TaskFilter{
		Date:   c.Query("date"),
		Status: models.TaskStatus(strings.ToUpper(c.Query("status"))),
	}

	tasks, err := h.logService.ListTasks(filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response := models.TaskListResponse{Tasks: make([]models.StatusResponse, len(tasks))}
	for i := range tasks {
		response.Tasks[i] = models.NewStatusResponse(&tasks[i])
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handlers) writeArtifactError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrArtifactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "log not found"})
	default:
		log.Printf("ERROR: Failed to read log: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read log"})
	}
}

func attachment(c *gin.Context, filename string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/octet-stream", payload)
}
