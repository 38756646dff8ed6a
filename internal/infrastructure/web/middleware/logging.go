package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/infrastructure/logging"
)

// importantHeaders se loguean en debug; nunca credenciales
var importantHeaders = []string{
	"Content-Type",
	"Accept",
	"Accept-Encoding",
	"Cache-Control",
	"X-Forwarded-For",
	"X-Real-IP",
}

// LoggingMiddleware complementa RequestTracingMiddleware: detalle de debug
// y recuperación de panics en handlers. Debe ir después del tracing para
// que el log lleve el request_id.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		logging.Debug(ctx, "Processing HTTP request", logging.Fields{
			"headers":        extractImportantHeaders(r),
			"query":          r.URL.RawQuery,
			"content_length": r.ContentLength,
		})

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err := fmt.Errorf("panic: %v", rec)
			logging.HTTP().RequestFailed(ctx, r.Method, r.URL.Path, http.StatusInternalServerError, err, 0)
			logging.Debug(ctx, "Recovered handler panic", logging.Fields{
				"stack": string(debug.Stack()),
			})

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			body := dto.NewErrorResponseWithCode("INTERNAL_ERROR", "Unexpected server error", http.StatusText(http.StatusInternalServerError))
			_ = json.NewEncoder(w).Encode(body)
		}()

		next.ServeHTTP(w, r)
	})
}

func extractImportantHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for _, header := range importantHeaders {
		if value := r.Header.Get(header); value != "" {
			headers[header] = value
		}
	}
	return headers
}
