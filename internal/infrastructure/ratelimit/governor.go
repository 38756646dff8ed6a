package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

// GovernorConfig límites de salida hacia el upstream
type GovernorConfig struct {
	MaxRequests     int           // techo dentro de la ventana
	Window          time.Duration // ventana deslizante, normalmente 60s
	MinInterval     time.Duration // separación mínima entre reservas
	DefaultCooldown time.Duration // cooldown cuando el 429 no trae Retry-After
}

// DefaultGovernorConfig 25 req/min con 2s de separación
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		MaxRequests:     25,
		Window:          time.Minute,
		MinInterval:     2 * time.Second,
		DefaultCooldown: time.Minute,
	}
}

// GovernorConfigFrom mapea la sección rate_limit; ceros toman el default
func GovernorConfigFrom(c config.RateLimitConfig) GovernorConfig {
	out := DefaultGovernorConfig()
	if c.MaxRequestsPerMinute > 0 {
		out.MaxRequests = c.MaxRequestsPerMinute
	}
	if c.Window > 0 {
		out.Window = c.Window
	}
	if c.MinInterval > 0 {
		out.MinInterval = c.MinInterval
	}
	if c.CooldownDuration > 0 {
		out.DefaultCooldown = c.CooldownDuration
	}
	return out
}

// RateGovernor es la única autoridad sobre "¿podemos llamar al upstream ahora?".
// Nunca bloquea: TryReserve decide y WaitDuration dice cuánto esperar.
type RateGovernor struct {
	config  GovernorConfig
	clock   clockwork.Clock
	metrics *metrics.Collector

	mu            sync.Mutex
	stamps        []time.Time // reservas dentro de la ventana, ascendente
	last          time.Time
	cooldownUntil time.Time
	cooldownTimer clockwork.Timer
}

// NewRateGovernor crea el governor. clock nil usa el reloj real.
func NewRateGovernor(config GovernorConfig, clock clockwork.Clock, m *metrics.Collector) *RateGovernor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}
	if config.DefaultCooldown <= 0 {
		config.DefaultCooldown = config.Window
	}

	logging.Info(context.Background(), "Rate governor initialized", logging.Fields{
		"max_requests": config.MaxRequests,
		"window":       config.Window.String(),
		"min_interval": config.MinInterval.String(),
	})

	return &RateGovernor{
		config:  config,
		clock:   clock,
		metrics: m,
		stamps:  make([]time.Time, 0, config.MaxRequests),
	}
}

// TryReserve registra una reserva si el techo, la separación mínima y el cooldown lo permiten
func (g *RateGovernor) TryReserve() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.pruneLocked(now)

	allowed := g.waitLocked(now) == 0
	if allowed {
		g.stamps = append(g.stamps, now)
		g.last = now
	}

	g.metrics.RecordGovernorDecision(allowed, len(g.stamps))
	return allowed
}

// WaitDuration tiempo exacto hasta que una reserva podría tener éxito; 0 si ya.
func (g *RateGovernor) WaitDuration() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.pruneLocked(now)
	return g.waitLocked(now)
}

// CanAttempt consulta sin consumir
func (g *RateGovernor) CanAttempt() bool {
	return g.WaitDuration() == 0
}

// HasBudget true si no hay cooldown y la ventana tiene cupo. Ignora la
// separación mínima: esa espera la absorbe el worker de la cola.
func (g *RateGovernor) HasBudget() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.pruneLocked(now)
	return !g.inCooldownLocked(now) && len(g.stamps) < g.config.MaxRequests
}

// waitLocked combina cooldown, separación mínima y expiración de la ventana
func (g *RateGovernor) waitLocked(now time.Time) time.Duration {
	var wait time.Duration

	if g.inCooldownLocked(now) {
		wait = g.cooldownUntil.Sub(now)
	}

	if !g.last.IsZero() && g.config.MinInterval > 0 {
		if gap := g.last.Add(g.config.MinInterval).Sub(now); gap > wait {
			wait = gap
		}
	}

	if n := len(g.stamps); n >= g.config.MaxRequests {
		// hay que esperar a que expire la reserva que deja el conteo bajo el techo
		oldest := g.stamps[n-g.config.MaxRequests]
		if w := oldest.Add(g.config.Window).Sub(now); w > wait {
			wait = w
		}
	}

	if wait < 0 {
		return 0
	}
	return wait
}

func (g *RateGovernor) pruneLocked(now time.Time) {
	i := 0
	for i < len(g.stamps) && now.Sub(g.stamps[i]) >= g.config.Window {
		i++
	}
	if i > 0 {
		g.stamps = append(g.stamps[:0], g.stamps[i:]...)
	}
}

func (g *RateGovernor) inCooldownLocked(now time.Time) bool {
	return !g.cooldownUntil.IsZero() && now.Before(g.cooldownUntil)
}

// ActivateCooldown fuerza rechazo durante d, independiente de los contadores.
// Si ya hay un cooldown que termina más tarde se conserva ese.
func (g *RateGovernor) ActivateCooldown(d time.Duration) {
	if d <= 0 {
		d = g.config.DefaultCooldown
	}

	g.mu.Lock()
	now := g.clock.Now()
	until := now.Add(d)
	if g.inCooldownLocked(now) && !until.After(g.cooldownUntil) {
		g.mu.Unlock()
		return
	}

	if g.cooldownTimer != nil {
		g.cooldownTimer.Stop()
	}
	g.cooldownUntil = until
	g.cooldownTimer = g.clock.AfterFunc(d, func() { g.expireCooldown(until) })
	g.mu.Unlock()

	g.metrics.SetCooldownActive(true)
	logging.Warn(context.Background(), "Upstream cooldown activated", logging.Fields{
		"cooldown":       d.String(),
		"cooldown_until": until.Format(time.RFC3339),
	})
}

// expireCooldown lo dispara el timer; ignora timers reemplazados
func (g *RateGovernor) expireCooldown(until time.Time) {
	g.mu.Lock()
	if !g.cooldownUntil.Equal(until) {
		g.mu.Unlock()
		return
	}
	g.cooldownUntil = time.Time{}
	g.cooldownTimer = nil
	g.mu.Unlock()

	g.metrics.SetCooldownActive(false)
	logging.Info(context.Background(), "Upstream cooldown expired", nil)
}

// CancelCooldown termina el cooldown activo, si hay
func (g *RateGovernor) CancelCooldown() {
	g.mu.Lock()
	if g.cooldownTimer != nil {
		g.cooldownTimer.Stop()
	}
	active := !g.cooldownUntil.IsZero()
	g.cooldownUntil = time.Time{}
	g.cooldownTimer = nil
	g.mu.Unlock()

	if active {
		g.metrics.SetCooldownActive(false)
	}
}

func (g *RateGovernor) InCooldown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inCooldownLocked(g.clock.Now())
}

// CooldownRemaining 0 si no hay cooldown
func (g *RateGovernor) CooldownRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if !g.inCooldownLocked(now) {
		return 0
	}
	return g.cooldownUntil.Sub(now)
}

func (g *RateGovernor) RequestsInWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(g.clock.Now())
	return len(g.stamps)
}

// GovernorStats snapshot para /admin/stats
type GovernorStats struct {
	RequestsInWindow  int
	MaxRequests       int
	InCooldown        bool
	CooldownRemaining time.Duration
	NextAllowedIn     time.Duration
}

func (g *RateGovernor) Stats() GovernorStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.pruneLocked(now)

	stats := GovernorStats{
		RequestsInWindow: len(g.stamps),
		MaxRequests:      g.config.MaxRequests,
		InCooldown:       g.inCooldownLocked(now),
		NextAllowedIn:    g.waitLocked(now),
	}
	if stats.InCooldown {
		stats.CooldownRemaining = g.cooldownUntil.Sub(now)
	}
	return stats
}
