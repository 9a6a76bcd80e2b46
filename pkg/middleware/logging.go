package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/audit"
)

// RequestIDHeader carries the request id to and from clients.
const RequestIDHeader = "X-Request-ID"

// RequestLogger returns middleware that logs every HTTP request. Server
// errors log at WARN, everything else at DEBUG. A request id is taken from
// X-Request-ID or generated, echoed on the response and attached to the
// request context for audit events.
// Pass nil logger to disable logging (makes it optional/injectable).
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			ctx := audit.WithRequestInfo(r.Context(), audit.RequestInfo{
				RequestID: requestID,
				ClientIP:  r.RemoteAddr,
			})

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Int("bytes", wrapped.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				logger.Warn("HTTP request failed", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

// responseWriter records the status code and body size. Only the first
// WriteHeader call reaches the underlying writer.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
	bytes         int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
