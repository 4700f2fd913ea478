package annotation

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// i18nMiddleware adds the appropriate localizer to the request context
func i18nMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		localizer := GetLocalizerFromRequest(r)
		ctx := WithLocalizer(r.Context(), localizer)
		handler.ServeHTTP(w, r.WithContext(ctx))
	})
}

// confirmMiddleware turns the confirm query parameter into the answer of
// the confirmation prompts raised while serving the request.
func confirmMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithConfirmation(r.Context(), r.URL.Query().Get("confirm") == "true")
		handler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func HTTPLogger(logger *zap.Logger, handler http.Handler) http.Handler {
	logger = logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initialTime := time.Now()
		wr := NewStatusCodeRecorderResponseWriter(w)
		handler.ServeHTTP(wr, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.String()),
			zap.Int("status", wr.Status),
			zap.Duration("duration", time.Since(initialTime)))
	})
}

type StatusCodeRecorderResponseWriter struct {
	http.ResponseWriter
	Status int
}

func (r *StatusCodeRecorderResponseWriter) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func NewStatusCodeRecorderResponseWriter(w http.ResponseWriter) *StatusCodeRecorderResponseWriter {
	return &StatusCodeRecorderResponseWriter{ResponseWriter: w, Status: 200}
}
