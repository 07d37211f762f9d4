package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type logContextKey string

const (
	LoggerKey  = logContextKey("logger")
	requestKey = logContextKey("request")
)

// requestInfo is filled in by handlers further down the chain and read back
// once the request completes.
type requestInfo struct {
	userID string
}

// wrapper around http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging attaches a request-scoped logger keyed by the caller's
// X-Request-ID, generating one when absent.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		start := time.Now()

		// Correlation ID
		correlationID := r.Header.Get("X-Request-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", correlationID)

		requestLogger := slog.Default().With(
			slog.String("correlation_id", correlationID),
			slog.String("http_method", r.Method),
			slog.String("http_path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
		)

		requestLogger.Debug("Incoming request")

		info := &requestInfo{}
		ctx := context.WithValue(r.Context(), LoggerKey, requestLogger)
		ctx = context.WithValue(ctx, requestKey, info)

		rw := newResponseWriter(w)
		req := r.WithContext(ctx)

		next.ServeHTTP(rw, req)

		attrs := []any{
			slog.Int("http_status", rw.statusCode),
			slog.Duration("duration", time.Since(start)),
		}
		// set by the mux on the request it was handed
		if req.Pattern != "" {
			attrs = append(attrs, slog.String("route", req.Pattern))
		}
		if productID := req.PathValue("productId"); productID != "" {
			attrs = append(attrs, slog.String("productId", productID))
		}
		if info.userID != "" {
			attrs = append(attrs, slog.String("userId", info.userID))
		}

		requestLogger.Info("Request Completed", attrs...)

	})
}

func setRequestUser(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestKey).(*requestInfo); ok {
		info.userID = userID
	}
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}

	return slog.Default()
}
