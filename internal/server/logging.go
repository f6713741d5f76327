package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/believeinme/background-check-service/internal/logger"
)

// NewRequestLogger logs every request through log.
func NewRequestLogger(log logger.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&requestLogger{log: log})
}

type requestLogger struct {
	log logger.Logger
}

func (l *requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	fields := map[string]interface{}{
		"http_method":   r.Method,
		"http_proto":    r.Proto,
		"uri":           r.URL.Path,
		"remote_addr":   r.RemoteAddr,
		"forwarded_for": r.Header.Get("X-Forwarded-For"),
		"user_agent":    r.UserAgent(),
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields["req_id"] = reqID
	}

	entry := &requestLogEntry{log: l.log.WithFields(fields)}
	entry.log.Debug("request started", nil)
	return entry
}

type requestLogEntry struct {
	log logger.Logger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.log.Info("request complete", map[string]interface{}{
		"resp_status":       status,
		"resp_bytes_length": bytes,
		"resp_elapsed_ms":   float64(elapsed.Nanoseconds()) / 1000000.0,
	})
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("request panicked", map[string]interface{}{
		"panic": fmt.Sprintf("%+v", v),
		"stack": string(stack),
	})
}
