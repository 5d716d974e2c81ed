package httpapi

import (
	"net/http"
	"time"

	"ticketflow/internal/common/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware emits one structured line per request.
func LoggingMiddleware(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     writer.status,
			"durationMs": time.Since(start).Milliseconds(),
		}
		if writer.status >= http.StatusInternalServerError {
			log.Error("request failed", fields)
			return
		}
		log.Info("request handled", fields)
	})
}
