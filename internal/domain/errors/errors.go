// Package errors define la taxonomía de errores del subsistema de precios.
// Se inspeccionan con errors.Is / errors.As, nunca por el mensaje.
package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited el upstream rechazó por cuota (HTTP 429). Nunca se reintenta.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamUnavailable red, timeout, 5xx o cuerpo ilegible. Admite retry acotado.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrQueueTimeout la tarea esperó más que su deadline sin ejecutarse.
	ErrQueueTimeout = errors.New("queued task timed out")
	// ErrEmptyUpstreamResponse respuesta válida pero sin datos.
	ErrEmptyUpstreamResponse = errors.New("empty upstream response")
	// ErrCircuitOpen el circuit breaker cortocircuitó la llamada.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrQueueClosed la cola se detuvo antes de ejecutar la tarea.
	ErrQueueClosed = errors.New("request queue closed")
	// ErrFetchNotPermitted throttle o cooldown impiden llamar al upstream ahora.
	ErrFetchNotPermitted = errors.New("upstream fetch not permitted")
	// ErrInvalidConfiguration configuración mal formada; único error que sale de los constructores.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// RateLimitError lleva el detalle de un 429.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: HTTP %d, retry after %s", ErrRateLimited, e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("%s: HTTP %d", ErrRateLimited, e.StatusCode)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// UpstreamError envuelve un fallo de transporte o de status no-429.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", ErrUpstreamUnavailable, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrUpstreamUnavailable, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

func NewUpstreamError(statusCode int, err error) error {
	return &UpstreamError{StatusCode: statusCode, Err: err}
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsQueueTimeout(err error) bool {
	return errors.Is(err, ErrQueueTimeout)
}

// IsRetryable solo los fallos de disponibilidad se reintentan; 429 y
// respuestas vacías quedan fuera.
func IsRetryable(err error) bool {
	if err == nil || IsRateLimited(err) {
		return false
	}
	return errors.Is(err, ErrUpstreamUnavailable)
}

// RetryAfter extrae la espera sugerida de un RateLimitError, 0 si no hay.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
