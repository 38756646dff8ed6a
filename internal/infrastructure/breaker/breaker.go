package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

// Config umbrales del breaker. Las tasas van en porcentaje (0-100).
type Config struct {
	Name                     string
	SlidingWindowSize        int
	MinimumCalls             int
	FailureRateThreshold     float64
	SlowCallRateThreshold    float64
	SlowCallDuration         time.Duration
	WaitDurationInOpen       time.Duration
	PermittedCallsInHalfOpen int
	// IsFailure decide qué errores cuentan como fallo. nil = todo error salvo context.Canceled.
	IsFailure func(err error) bool
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                     name,
		SlidingWindowSize:        10,
		MinimumCalls:             5,
		FailureRateThreshold:     50,
		SlowCallRateThreshold:    100,
		SlowCallDuration:         20 * time.Second,
		WaitDurationInOpen:       60 * time.Second,
		PermittedCallsInHalfOpen: 2,
	}
}

// FromConfig arma la Config del breaker a partir de la sección breaker
func FromConfig(name string, c config.BreakerConfig) Config {
	return Config{
		Name:                     name,
		SlidingWindowSize:        c.SlidingWindowSize,
		MinimumCalls:             c.MinimumCalls,
		FailureRateThreshold:     c.FailureRateThreshold,
		SlowCallRateThreshold:    c.SlowCallRateThreshold,
		SlowCallDuration:         c.SlowCallDuration,
		WaitDurationInOpen:       c.WaitDurationInOpen,
		PermittedCallsInHalfOpen: c.PermittedCallsInHalfOpen,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

type outcome struct {
	failed bool
	slow   bool
}

// CircuitBreaker máquina de estados CLOSED/OPEN/HALF_OPEN con overrides manuales.
// La ventana es por cantidad de llamadas (las N más recientes).
type CircuitBreaker struct {
	config  Config
	clock   clockwork.Clock
	metrics *metrics.Collector

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time

	ring  []outcome
	next  int
	count int

	halfOpenInFlight  int
	halfOpenCompleted int
	halfOpenSlow      int

	notPermitted int64
}

func New(config Config, clock clockwork.Clock, m *metrics.Collector) *CircuitBreaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SlidingWindowSize <= 0 {
		config.SlidingWindowSize = 10
	}
	if config.MinimumCalls <= 0 || config.MinimumCalls > config.SlidingWindowSize {
		config.MinimumCalls = config.SlidingWindowSize
	}
	if config.PermittedCallsInHalfOpen <= 0 {
		config.PermittedCallsInHalfOpen = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}

	cb := &CircuitBreaker{
		config:  config,
		clock:   clock,
		metrics: m,
		state:   StateClosed,
		ring:    make([]outcome, config.SlidingWindowSize),
	}
	m.SetCircuitBreakerState(config.Name, int(StateClosed))
	return cb
}

// Execute corre fn si el estado lo permite; si no, devuelve ErrCircuitOpen sin llamar a fn
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	gen, state, err := cb.acquire()
	if err != nil {
		return err
	}

	start := cb.clock.Now()
	callErr := fn(ctx)
	cb.record(gen, state, callErr, cb.clock.Since(start))
	return callErr
}

// Call versión genérica de Execute
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

func (cb *CircuitBreaker) acquire() (uint64, State, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentStateLocked()
	if !state.permitsCalls() {
		cb.notPermitted++
		cb.metrics.RecordBreakerCall(cb.config.Name, "rejected")
		return 0, state, fmt.Errorf("%w: state %s", domainerrors.ErrCircuitOpen, state)
	}

	if state == StateHalfOpen {
		if cb.halfOpenInFlight+cb.halfOpenCompleted >= cb.config.PermittedCallsInHalfOpen {
			cb.notPermitted++
			cb.metrics.RecordBreakerCall(cb.config.Name, "rejected")
			return 0, state, fmt.Errorf("%w: half-open trial calls exhausted", domainerrors.ErrCircuitOpen)
		}
		cb.halfOpenInFlight++
	}

	return cb.generation, state, nil
}

func (cb *CircuitBreaker) record(gen uint64, state State, err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// el estado cambió mientras la llamada estaba en vuelo: el resultado ya no aplica
	if gen != cb.generation || state == StateDisabled {
		return
	}

	if err != nil && !cb.config.IsFailure(err) {
		// cancelación del caller: no cuenta, pero libera el cupo de prueba
		if state == StateHalfOpen {
			cb.halfOpenInFlight--
		}
		return
	}

	o := outcome{
		failed: err != nil,
		slow:   cb.config.SlowCallDuration > 0 && duration >= cb.config.SlowCallDuration,
	}
	cb.metrics.RecordBreakerCall(cb.config.Name, outcomeLabel(o))

	switch state {
	case StateClosed:
		cb.pushLocked(o)
		if cb.count < cb.config.MinimumCalls {
			return
		}
		failureRate, slowRate := cb.ratesLocked()
		if failureRate >= cb.config.FailureRateThreshold || slowRate >= cb.config.SlowCallRateThreshold {
			cb.transitionLocked(StateOpen, logging.Fields{
				"failure_rate":   failureRate,
				"slow_call_rate": slowRate,
			})
		}

	case StateHalfOpen:
		cb.halfOpenInFlight--
		if o.failed {
			cb.transitionLocked(StateOpen, logging.Fields{"reason": "half-open trial failed"})
			return
		}
		cb.halfOpenCompleted++
		if o.slow {
			cb.halfOpenSlow++
		}
		if cb.halfOpenCompleted >= cb.config.PermittedCallsInHalfOpen {
			slowRate := float64(cb.halfOpenSlow) / float64(cb.halfOpenCompleted) * 100
			if slowRate >= cb.config.SlowCallRateThreshold {
				cb.transitionLocked(StateOpen, logging.Fields{"slow_call_rate": slowRate})
				return
			}
			cb.transitionLocked(StateClosed, nil)
		}
	}
}

func outcomeLabel(o outcome) string {
	switch {
	case o.failed:
		return "failure"
	case o.slow:
		return "slow"
	default:
		return "success"
	}
}

func (cb *CircuitBreaker) pushLocked(o outcome) {
	cb.ring[cb.next] = o
	cb.next = (cb.next + 1) % len(cb.ring)
	if cb.count < len(cb.ring) {
		cb.count++
	}
}

func (cb *CircuitBreaker) ratesLocked() (failureRate, slowRate float64) {
	if cb.count == 0 {
		return 0, 0
	}
	var failed, slow int
	for i := 0; i < cb.count; i++ {
		if cb.ring[i].failed {
			failed++
		}
		if cb.ring[i].slow {
			slow++
		}
	}
	return float64(failed) / float64(cb.count) * 100, float64(slow) / float64(cb.count) * 100
}

// currentStateLocked aplica la transición perezosa OPEN -> HALF_OPEN
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.clock.Since(cb.openedAt) >= cb.config.WaitDurationInOpen {
		cb.transitionLocked(StateHalfOpen, nil)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State, fields logging.Fields) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.generation++
	cb.halfOpenInFlight = 0
	cb.halfOpenCompleted = 0
	cb.halfOpenSlow = 0

	switch to {
	case StateOpen:
		cb.openedAt = cb.clock.Now()
	case StateClosed, StateHalfOpen:
		cb.resetWindowLocked()
	}

	cb.metrics.SetCircuitBreakerState(cb.config.Name, int(to))

	if fields == nil {
		fields = logging.Fields{}
	}
	fields["breaker"] = cb.config.Name
	fields[logging.FieldFromState] = from.String()
	fields[logging.FieldToState] = to.String()
	if to == StateOpen || to == StateForcedOpen {
		logging.Warn(context.Background(), "Circuit breaker state changed", fields)
	} else {
		logging.Info(context.Background(), "Circuit breaker state changed", fields)
	}
}

func (cb *CircuitBreaker) resetWindowLocked() {
	for i := range cb.ring {
		cb.ring[i] = outcome{}
	}
	cb.next = 0
	cb.count = 0
}

// State estado actual, observando la expiración de OPEN
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// ForceOpen rechaza todo hasta Reset
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateForcedOpen, logging.Fields{"reason": "manual"})
}

// Disable deja pasar todo sin registrar resultados
func (cb *CircuitBreaker) Disable() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateDisabled, logging.Fields{"reason": "manual"})
}

// Reset vuelve a CLOSED con la ventana vacía
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateClosed {
		cb.resetWindowLocked()
		return
	}
	cb.transitionLocked(StateClosed, logging.Fields{"reason": "manual"})
}

// Snapshot métricas del breaker para /admin/stats
type Snapshot struct {
	State             string  `json:"state"`
	FailureRate       float64 `json:"failure_rate"`
	SlowCallRate      float64 `json:"slow_call_rate"`
	BufferedCalls     int     `json:"buffered_calls"`
	NotPermittedCalls int64   `json:"not_permitted_calls"`
}

// Snapshot tasas en -1 mientras no se alcance MinimumCalls
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Snapshot{
		State:             cb.currentStateLocked().String(),
		FailureRate:       -1,
		SlowCallRate:      -1,
		BufferedCalls:     cb.count,
		NotPermittedCalls: cb.notPermitted,
	}
	if cb.count >= cb.config.MinimumCalls {
		s.FailureRate, s.SlowCallRate = cb.ratesLocked()
	}
	return s
}
