package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// HTTPMetricsMiddleware collects HTTP metrics for Prometheus
func (c *Collector) HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		wrapped := &responseWriterMetrics{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		c.RecordHTTPRequest(r.Method, routeLabel(r), wrapped.statusCode, time.Since(startTime).Seconds(), wrapped.written)
	})
}

// responseWriterMetrics wraps http.ResponseWriter to capture metrics
type responseWriterMetrics struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriterMetrics) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriterMetrics) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap permite a http.ResponseController llegar al writer original
func (rw *responseWriterMetrics) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack necesario para el upgrade de gorilla/websocket
func (rw *responseWriterMetrics) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", rw.ResponseWriter)
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// routeLabel usa el template de mux ({id}) para no explotar la cardinalidad
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath normalizes URL paths to avoid high cardinality in metrics
func normalizePath(path string) string {
	if path == "/" {
		return "/"
	}

	path = strings.TrimSuffix(path, "/")

	switch {
	case path == "/health", path == "/ready", path == "/metrics", path == "/ws/prices":
		return path
	case path == "/api/v1/prices":
		return path
	case strings.HasPrefix(path, "/api/v1/prices/"):
		return "/api/v1/prices/{id}"
	case strings.HasPrefix(path, "/api/v1/admin/"):
		return "/api/v1/admin/*"
	case strings.HasPrefix(path, "/swagger"):
		return "/swagger/*"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "/unknown"
	}
}
