package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"activity-logs/internal/models"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNotFound is returned for unknown tasks, failed tasks and dates without a log
	ErrNotFound = errors.New("not found")
	// ErrNotReady is returned when downloading a task that has not completed
	ErrNotReady = errors.New("log not ready")
)

// APIError is a non-success response from the service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("activity-logs API error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the activity-logs HTTP API
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			// A rejected submission created no task, so retrying it is safe
			if r.StatusCode() == http.StatusServiceUnavailable {
				return true
			}
			return r.Request.Method == http.MethodGet &&
				(r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	return c
}

// Generate submits a generation task for date
func (c *Client) Generate(ctx context.Context, date string) (*models.TaskResponse, error) {
	var result models.TaskResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("date", date).
		SetResult(&result).
		Post("/api/logs/generate")
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return nil, apiError(resp)
	}
	return &result, nil
}

// Status returns the current state of a task
func (c *Client) Status(ctx context.Context, taskID string) (*models.StatusResponse, error) {
	var result models.StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("taskId", taskID).
		SetResult(&result).
		Get("/api/logs/status/{taskId}")
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return &result, nil
}

// Wait polls Status every interval until the task is COMPLETED or FAILED
func (c *Client) Wait(ctx context.Context, taskID string, interval time.Duration) (*models.StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *models.StatusResponse
	for {
		status, err := c.Status(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return nil, err
		}
		last = status
		if models.TaskStatus(status.Status).Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListTasks returns tasks, optionally filtered by date and status
func (c *Client) ListTasks(ctx context.Context, date, status string) ([]models.StatusResponse, error) {
	var result models.TaskListResponse
	req := c.http.R().SetContext(ctx).SetResult(&result)
	if date != "" {
		req.SetQueryParam("date", date)
	}
	if status != "" {
		req.SetQueryParam("status", status)
	}

	resp, err := req.Get("/api/logs/tasks")
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return result.Tasks, nil
}

// View returns the latest generated log for date
func (c *Client) View(ctx context.Context, date string) ([]byte, error) {
	return c.getBytes(ctx, "/api/logs/view", map[string]string{"date": date})
}

// Download returns the log produced by a completed task
func (c *Client) Download(ctx context.Context, taskID string) ([]byte, error) {
	return c.getBytes(ctx, "/api/logs/download/"+taskID, nil)
}

// DownloadByDate returns the latest generated log for date as an attachment
func (c *Client) DownloadByDate(ctx context.Context, date string) ([]byte, error) {
	return c.getBytes(ctx, "/api/logs/download", map[string]string{"date": date})
}

func (c *Client) getBytes(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return resp.Body(), nil
}

// apiError converts an error response, wrapping ErrNotFound and ErrNotReady
func apiError(resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(resp.Body()))
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		message = body.Error
	}

	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: message}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", ErrNotReady, apiErr)
	default:
		return apiErr
	}
}
