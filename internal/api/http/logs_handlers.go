package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUILogEntries caps a single batch from the launcher UI
const maxUILogEntries = 200

// UILogEntry represents a log entry from the launcher UI
type UILogEntry struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// UILogStreamRequest represents a batch of logs from the launcher UI
type UILogStreamRequest struct {
	Source  string       `json:"source"`
	Entries []UILogEntry `json:"entries"`
}

// StreamLogs writes log entries sent by the launcher UI into the backend log,
// so a single file holds both sides of a session.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req UILogStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if req.Source != "ui" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid log source", Code: "invalid_request"})
		return
	}
	if len(req.Entries) == 0 || len(req.Entries) > maxUILogEntries {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "entries must hold 1 to 200 items", Code: "invalid_request"})
		return
	}

	log := h.log.Named("ui")
	for _, entry := range req.Entries {
		writeUILogEntry(log, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"entries_received": len(req.Entries),
		"timestamp":        time.Now().Unix(),
	})
}

func writeUILogEntry(log *zap.Logger, entry UILogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+2)
	fields = append(fields,
		zap.String("ui_log_id", entry.ID),
		zap.String("ui_timestamp", entry.Timestamp),
	)

	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		log.Error(entry.Message, fields...)
	case "warn":
		log.Warn(entry.Message, fields...)
	case "debug", "verbose":
		log.Debug(entry.Message, fields...)
	default:
		log.Info(entry.Message, fields...)
	}
}
