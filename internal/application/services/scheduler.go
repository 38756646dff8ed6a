package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

// Updater lo que el Scheduler necesita del PriceService
type Updater interface {
	ScheduledUpdate(ctx context.Context) error
	Warmup(ctx context.Context) error
}

// Scheduler dispara ScheduledUpdate en cada tick. El throttle de full update
// vive en el servicio; acá solo se marca el ritmo.
type Scheduler struct {
	updater Updater
	config  config.SchedulerConfig
	clock   clockwork.Clock
	metrics *metrics.Collector

	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
}

func NewScheduler(updater Updater, cfg config.SchedulerConfig, clock clockwork.Clock, m *metrics.Collector) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		updater: updater,
		config:  cfg,
		clock:   clock,
		metrics: m,
	}
}

// Start lanza el loop en background. No hace nada si está deshabilitado o ya corriendo.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled || s.done != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.startedAt = s.clock.Now()

	go s.run(ctx, s.done)

	logging.Info(ctx, "Price scheduler started", logging.Fields{
		"interval": s.config.Interval.String(),
		"warmup":   s.config.WarmupOnStart,
	})
}

// Stop cancela el loop y espera a que termine el tick en curso
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.config.WarmupOnStart {
		if err := s.updater.Warmup(ctx); err != nil {
			logging.WarnWithError(ctx, "Warmup did not refresh prices", err, nil)
		}
	}

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(context.Background(), "Price scheduler stopped", nil)
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.metrics.SetUptime(s.clock.Since(s.startedAt).Seconds())

	err := s.updater.ScheduledUpdate(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domainerrors.ErrFetchNotPermitted):
		logging.Debug(ctx, "Scheduled update deferred", logging.Fields{
			logging.FieldError: err.Error(),
		})
	default:
		logging.WarnWithError(ctx, "Scheduled update failed", err, nil)
	}
}
