package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"

	"github.com/jonboulle/clockwork"

	"crypto-price-monitor/internal/infrastructure/logging"
)

// RequestIDHeader se propaga si el cliente ya lo trae
const RequestIDHeader = "X-Request-ID"

const maxIncomingRequestIDLen = 128

// ResponseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack para /ws/prices
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", rw.ResponseWriter)
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Tracer adds request tracing and structured logging
type Tracer struct {
	clock clockwork.Clock
}

func NewTracer(clock clockwork.Clock) *Tracer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracer{clock: clock}
}

// RequestTracingMiddleware usa el reloj real
func RequestTracingMiddleware(next http.Handler) http.Handler {
	return NewTracer(nil).Handler(next)
}

func (t *Tracer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := incomingRequestID(r)
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		startTime := t.clock.Now()
		ctx := logging.WithRequestID(r.Context(), requestID)
		ctx = logging.WithStartTime(ctx, startTime)

		w.Header().Set(RequestIDHeader, requestID)
		wrapped := &responseWriter{ResponseWriter: w}

		logging.Debug(ctx, "HTTP request started", logging.Fields{
			logging.FieldHTTPMethod:    r.Method,
			logging.FieldHTTPPath:      r.URL.Path,
			logging.FieldHTTPUserAgent: r.UserAgent(),
			logging.FieldHTTPRemoteIP:  getRemoteIP(r),
		})

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		if wrapped.statusCode == 0 {
			wrapped.statusCode = http.StatusOK
		}
		durationMs := float64(t.clock.Since(startTime).Nanoseconds()) / 1e6
		logging.HTTP().RequestCompleted(ctx, r.Method, r.URL.Path, wrapped.statusCode, durationMs)
	})
}

// incomingRequestID acepta el id del cliente solo si es razonable
func incomingRequestID(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > maxIncomingRequestIDLen {
		return ""
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}

// getRemoteIP extracts the real client IP from request
func getRemoteIP(r *http.Request) string {
	if xForwardedFor := r.Header.Get("X-Forwarded-For"); xForwardedFor != "" {
		return xForwardedFor
	}
	if xRealIP := r.Header.Get("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}
	return r.RemoteAddr
}
