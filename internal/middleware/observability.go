package middleware

import (
	"net/http"
	"strconv"
	"time"

	"papercrumpler/internal/httputil"
	"papercrumpler/internal/metrics"
	"papercrumpler/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const RequestIDHeader = "X-Request-ID"

// Observability tags each admin request with an id and span, counts it and
// logs its completion.
func Observability(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, span := tracing.StartSpan(r.Context(), "http "+r.URL.Path,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
			)
			defer span.End()

			requestID := tracing.GenerateRequestID()
			ctx = tracing.WithRequestID(ctx, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r.WithContext(ctx))

			elapsed := time.Since(start)
			status := strconv.Itoa(wrapper.statusCode)
			span.SetAttributes(attribute.Int("http.response.status_code", wrapper.statusCode))

			metrics.IncrementCounter("http_requests_total", map[string]string{
				"endpoint":    r.URL.Path,
				"status_code": status,
			}, "Admin HTTP requests")
			metrics.RecordTimer("http_request_duration", elapsed, map[string]string{"endpoint": r.URL.Path})

			level := logrus.DebugLevel
			if wrapper.statusCode >= 500 {
				level = logrus.ErrorLevel
			} else if wrapper.statusCode >= 400 {
				level = logrus.WarnLevel
			}
			logger.WithFields(logrus.Fields{
				"request_id":  requestID,
				"method":      r.Method,
				"url":         r.URL.Path,
				"status_code": wrapper.statusCode,
				"duration_ms": elapsed.Milliseconds(),
				"remote_ip":   httputil.ClientIP(r),
			}).Log(level, "HTTP request completed")
		})
	}
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWrapper) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWrapper) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
