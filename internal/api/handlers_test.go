package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"activity-logs/internal/models"
	"activity-logs/internal/services"
	"activity-logs/internal/workerpool"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, gen services.Generator, workers, queueSize int) http.Handler {
	t.Helper()
	logService := services.NewLogService(
		services.NewTaskService(nil),
		services.NewMemoryArtifactStore(),
		gen,
		workerpool.New(workers, queueSize),
		0,
	)
	t.Cleanup(func() { _ = logService.Shutdown(context.Background()) })
	return SetupRoutes(NewHandlers(logService))
}

func doRequest(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func waitForHTTPStatus(t *testing.T, router http.Handler, taskID string, status models.TaskStatus) models.StatusResponse {
	t.Helper()
	var last models.StatusResponse
	require.Eventually(t, func() bool {
		w := doRequest(router, http.MethodGet, "/api/logs/status/"+taskID, "")
		if w.Code != http.StatusOK {
			return false
		}
		last = decode[models.StatusResponse](t, w)
		return last.Status == string(status)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func echoGenerator() services.Generator {
	return services.GeneratorFunc(func(ctx context.Context, date string) ([]byte, error) {
		if date == "2099-01-01" {
			return nil, errors.New("log file for date 2099-01-01 not found")
		}
		return []byte("events of " + date + "\n"), nil
	})
}

func TestGenerateAndDownloadFlow(t *testing.T) {
	router := newTestRouter(t, echoGenerator(), 1, 8)

	w := doRequest(router, http.MethodPost, "/api/logs/generate?date=2024-01-15", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	created := decode[models.TaskResponse](t, w)
	assert.NotEmpty(t, created.TaskID)
	assert.Equal(t, "2024-01-15", created.Date)
	assert.Equal(t, "PENDING", created.Status)

	status := waitForHTTPStatus(t, router, created.TaskID, models.TaskStatusCompleted)
	assert.Empty(t, status.ErrorMessage)
	_, err := time.Parse(time.RFC3339, status.CreatedAt)
	assert.NoError(t, err)

	w = doRequest(router, http.MethodGet, "/api/logs/download/"+created.TaskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="task-`+created.TaskID+`-2024-01-15.log"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "events of 2024-01-15\n", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/logs/view?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "events of 2024-01-15\n", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/logs/download?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="employee-management-2024-01-15.log"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "events of 2024-01-15\n", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/logs/tasks?date=2024-01-15&status=completed", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.TaskListResponse](t, w)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, created.TaskID, list.Tasks[0].TaskID)
}

func TestGenerateWithJSONBody(t *testing.T) {
	router := newTestRouter(t, echoGenerator(), 1, 8)

	w := doRequest(router, http.MethodPost, "/api/logs/generate", `{"date":"2024-01-15"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "2024-01-15", decode[models.TaskResponse](t, w).Date)

	w = doRequest(router, http.MethodPost, "/api/logs/generate", `{"day":"2024-01-15"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateRejectsBadDates(t *testing.T) {
	router := newTestRouter(t, echoGenerator(), 1, 8)

	for _, target := range []string{
		"/api/logs/generate",
		"/api/logs/generate?date=2024-13-01",
		"/api/logs/generate?date=15-01-2024",
	} {
		w := doRequest(router, http.MethodPost, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
	}
}

func TestFailedGenerationOverHTTP(t *testing.T) {
	router := newTestRouter(t, echoGenerator(), 1, 8)

	w := doRequest(router, http.MethodPost, "/api/logs/generate?date=2099-01-01", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	taskID := decode[models.TaskResponse](t, w).TaskID

	status := waitForHTTPStatus(t, router, taskID, models.TaskStatusFailed)
	assert.Equal(t, "log file for date 2099-01-01 not found", status.ErrorMessage)

	w = doRequest(router, http.MethodGet, "/api/logs/download/"+taskID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/logs/view?date=2099-01-01", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadNotReadyOverHTTP(t *testing.T) {
	release := make(chan struct{})
	gen := services.GeneratorFunc(func(ctx context.Context, date string) ([]byte, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []byte("late"), nil
	})
	router := newTestRouter(t, gen, 1, 8)
	defer close(release)

	w := doRequest(router, http.MethodPost, "/api/logs/generate?date=2024-01-15", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	taskID := decode[models.TaskResponse](t, w).TaskID

	w = doRequest(router, http.MethodGet, "/api/logs/download/"+taskID, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))
	body := decode[map[string]string](t, w)
	assert.Equal(t, "log not ready", body["error"])
	assert.Contains(t, []string{"PENDING", "RUNNING"}, body["status"])
}

func TestNotFoundResponses(t *testing.T) {
	router := newTestRouter(t, echoGenerator(), 1, 8)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"unknown task status", "/api/logs/status/unknown", http.StatusNotFound},
		{"unknown task download", "/api/logs/download/unknown", http.StatusNotFound},
		{"never generated view", "/api/logs/view?date=2024-01-15", http.StatusNotFound},
		{"never generated download", "/api/logs/download?date=2024-01-15", http.StatusNotFound},
		{"view without date", "/api/logs/view", http.StatusBadRequest},
		{"download without date", "/api/logs/download", http.StatusBadRequest},
		{"view with bad date", "/api/logs/view?date=yesterday", http.StatusBadRequest},
		{"list with bad status", "/api/logs/tasks?status=done", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

// stubLogService returns fixed errors to exercise the status code mapping
type stubLogService struct {
	submitErr error
	readErr   error
}

func (s *stubLogService) Submit(ctx context.Context, date string) (*models.Task, error) {
	return nil, s.submitErr
}

func (s *stubLogService) Status(taskID string) (*models.Task, error) {
	return nil, services.ErrTaskNotFound
}

func (s *stubLogService) View(ctx context.Context, date string) (*models.Artifact, error) {
	return nil, s.readErr
}

func (s *stubLogService) Download(ctx context.Context, taskID string) (*models.Task, *models.Artifact, error) {
	return &models.Task{ID: taskID, Status: models.TaskStatusCompleted}, nil, s.readErr
}

func (s *stubLogService) DownloadByDate(ctx context.Context, date string) (*models.Artifact, error) {
	return nil, s.readErr
}

func (s *stubLogService) ListTasks(filter models.TaskFilter) ([]models.Task, error) {
	return nil, nil
}

func TestErrorMapping(t *testing.T) {
	t.Run("Should answer 503 when the queue is full", func(t *testing.T) {
		router := SetupRoutes(NewHandlers(&stubLogService{submitErr: services.ErrQueueFull}))

		w := doRequest(router, http.MethodPost, "/api/logs/generate?date=2024-01-15", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("Should answer 503 while shutting down", func(t *testing.T) {
		router := SetupRoutes(NewHandlers(&stubLogService{submitErr: services.ErrShuttingDown}))

		w := doRequest(router, http.MethodPost, "/api/logs/generate?date=2024-01-15", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("Should answer 500 on storage errors", func(t *testing.T) {
		router := SetupRoutes(NewHandlers(&stubLogService{
			submitErr: errors.New("database is locked"),
			readErr:   errors.New("bucket unavailable"),
		}))

		assert.Equal(t, http.StatusInternalServerError, doRequest(router, http.MethodPost, "/api/logs/generate?date=2024-01-15", "").Code)
		assert.Equal(t, http.StatusInternalServerError, doRequest(router, http.MethodGet, "/api/logs/view?date=2024-01-15", "").Code)
		assert.Equal(t, http.StatusInternalServerError, doRequest(router, http.MethodGet, "/api/logs/download/abc", "").Code)
	})

	t.Run("Should answer 404 when a completed task lost its log", func(t *testing.T) {
		router := SetupRoutes(NewHandlers(&stubLogService{readErr: services.ErrArtifactNotFound}))

		w := doRequest(router, http.MethodGet, "/api/logs/download/abc", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthAndCORS(t *testing.T) {
	router := SetupRoutes(NewHandlers(&stubLogService{}))

	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(router, http.MethodOptions, "/api/logs/generate", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
