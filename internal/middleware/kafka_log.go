package middleware

import (
	"context"
	"encoding/json"
	"time"

	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogWriter is satisfied by *kafka.Writer.
type LogWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	IP         string    `json:"ip"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	Duration   float64   `json:"duration_seconds"`
	UserID     string    `json:"user_id,omitempty"`
}

// KafkaLogMiddleware ships one LogEntry per request to the log topic. Write
// failures are logged locally and never affect the response.
func KafkaLogMiddleware(w LogWriter, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if w == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		entry := LogEntry{
			Timestamp:  time.Now().UTC(),
			Service:    service,
			IP:         c.ClientIP(),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: c.Writer.Status(),
			Duration:   time.Since(start).Seconds(),
		}
		if uid, err := utils.GetUserID(c); err == nil {
			entry.UserID = uid
		}

		body, err := json.Marshal(entry)
		if err != nil {
			zap.L().Error("marshal log entry failed", zap.Error(err))
			return
		}
		if err := w.WriteMessages(context.WithoutCancel(c.Request.Context()), kafka.Message{Key: []byte(entry.Path), Value: body}); err != nil {
			zap.L().Warn("write log to kafka failed", zap.Error(err))
		}
	}
}
