package api

import (
	"log"
	"net/http"
	"time"

	"activity-logs/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	watchPollInterval = 200 * time.Millisecond
	watchWriteTimeout = 10 * time.Second
	watchMaxDuration  = 30 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same open policy as the CORS middleware
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchTaskHandler handles GET /api/logs/watch/:taskId
// It upgrades to a WebSocket and pushes the task status every time it
// changes, closing the connection once the task is COMPLETED or FAILED.
func (h *Handlers) WatchTaskHandler(c *gin.Context) {
	taskID := c.Param("taskId")

	task, err := h.logService.Status(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WARNING: Failed to upgrade watch connection for task %s: %v", taskID, err)
		return
	}
	defer conn.Close()

	// Reader side only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	deadline := time.After(watchMaxDuration)

	var lastSent *models.Task
	for {
		if lastSent == nil || task.Status != lastSent.Status {
			conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteJSON(models.NewStatusResponse(task)); err != nil {
				return
			}
			lastSent = task
		}

		if task.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(task.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(watchWriteTimeout))
			return
		}

		select {
		case <-closed:
			return
		case <-deadline:
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "watch timeout")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(watchWriteTimeout))
			return
		case <-ticker.C:
		}

		task, err = h.logService.Status(taskID)
		if err != nil {
			// Purged by retention while being watched
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "task not found")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(watchWriteTimeout))
			return
		}
	}
}
