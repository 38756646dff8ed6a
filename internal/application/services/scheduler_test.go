package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/config"
)

type countingUpdater struct {
	scheduled atomic.Int32
	warmups   atomic.Int32
	err       error
}

func (u *countingUpdater) ScheduledUpdate(ctx context.Context) error {
	u.scheduled.Add(1)
	return u.err
}

func (u *countingUpdater) Warmup(ctx context.Context) error {
	u.warmups.Add(1)
	return nil
}

func TestScheduler_TicksAndWarmup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	updater := &countingUpdater{err: domainerrors.ErrFetchNotPermitted}
	s := NewScheduler(updater, config.SchedulerConfig{Enabled: true, Interval: time.Minute, WarmupOnStart: true}, clock, nil)

	s.Start(context.Background())
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), updater.warmups.Load())

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return updater.scheduled.Load() == 1 }, time.Second, 10*time.Millisecond)

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return updater.scheduled.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_Disabled(t *testing.T) {
	updater := &countingUpdater{}
	s := NewScheduler(updater, config.SchedulerConfig{Enabled: false, Interval: time.Minute, WarmupOnStart: true}, clockwork.NewFakeClock(), nil)

	s.Start(context.Background())
	s.Stop()

	assert.Zero(t, updater.warmups.Load())
	assert.Zero(t, updater.scheduled.Load())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(&countingUpdater{}, config.SchedulerConfig{Enabled: true, Interval: time.Minute}, clockwork.NewFakeClock(), nil)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
