package queue

import (
	"context"
	"fmt"
	"sync"

	domainerrors "crypto-price-monitor/internal/domain/errors"
)

// Future handle de completitud que ve quien encoló la tarea
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done se cierra cuando hay resultado
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await espera el resultado aplicando el timeout propio del caller.
// Si ctx vence antes, devuelve ErrQueueTimeout; la tarea sigue en la cola.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: caller gave up waiting: %w", domainerrors.ErrQueueTimeout, ctx.Err())
	}
}
