package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	domainerrors "crypto-price-monitor/internal/domain/errors"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

// Governor lo que la cola necesita del RateGovernor
type Governor interface {
	TryReserve() bool
	WaitDuration() time.Duration
}

// Config de la cola
type Config struct {
	TaskTimeout  time.Duration // deadline absoluto desde el enqueue
	PollInterval time.Duration // espera máxima del worker con la cola vacía
	MaxDepth     int           // 0 = sin límite
}

func DefaultConfig() Config {
	return Config{
		TaskTimeout:  30 * time.Second,
		PollInterval: time.Second,
	}
}

// minGovernorWait evita un busy loop si el governor rechaza pero informa espera 0
const minGovernorWait = 10 * time.Millisecond

type task struct {
	seq        uint64
	priority   Priority
	enqueuedAt time.Time
	deadline   time.Time
	run        func(ctx context.Context) error
	fail       func(err error)
}

// RequestQueue serializa todas las llamadas al upstream. Un único worker drena
// el heap y consulta al governor antes de cada ejecución.
type RequestQueue struct {
	config   Config
	governor Governor
	clock    clockwork.Clock
	metrics  *metrics.Collector

	mu     sync.Mutex
	tasks  taskHeap
	seq    uint64
	closed bool

	signal    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once

	enqueued  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64
}

// NewRequestQueue crea la cola; el worker arranca con Start.
func NewRequestQueue(config Config, governor Governor, clock clockwork.Clock, m *metrics.Collector) *RequestQueue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultConfig().TaskTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RequestQueue{
		config:   config,
		governor: governor,
		clock:    clock,
		metrics:  m,
		signal:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Enqueue agrega fn con la prioridad dada y devuelve su Future.
// fn se ejecuta en el worker, nunca en la goroutine del caller.
func Enqueue[T any](q *RequestQueue, priority Priority, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	t := &task{
		priority: priority,
		run: func(ctx context.Context) error {
			v, err := fn(ctx)
			f.complete(v, err)
			return err
		},
		fail: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	}

	if err := q.push(t); err != nil {
		return failedFuture[T](err)
	}
	return f
}

func (q *RequestQueue) push(t *task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domainerrors.ErrQueueClosed
	}
	if depth := len(q.tasks); q.config.MaxDepth > 0 && depth >= q.config.MaxDepth {
		q.mu.Unlock()
		q.metrics.RecordQueueTask(t.priority.String(), "rejected")
		logging.Warn(q.ctx, "Request queue full, rejecting task", logging.Fields{
			logging.FieldPriority:   t.priority.String(),
			logging.FieldQueueDepth: depth,
		})
		return fmt.Errorf("%w: queue full (%d tasks)", domainerrors.ErrQueueTimeout, q.config.MaxDepth)
	}

	q.seq++
	t.seq = q.seq
	t.enqueuedAt = q.clock.Now()
	t.deadline = t.enqueuedAt.Add(q.config.TaskTimeout)
	heap.Push(&q.tasks, t)
	depth := len(q.tasks)
	q.mu.Unlock()

	q.enqueued.Add(1)
	q.metrics.SetQueueDepth(depth)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Start lanza el worker. Llamadas repetidas no hacen nada.
func (q *RequestQueue) Start() {
	q.startOnce.Do(func() {
		go q.worker()
		logging.Info(context.Background(), "Request queue worker started", logging.Fields{
			"task_timeout":  q.config.TaskTimeout.String(),
			"poll_interval": q.config.PollInterval.String(),
		})
	})
}

// Stop detiene el worker y falla las tareas pendientes con ErrQueueClosed.
// Espera a que termine la tarea en curso o a que ctx venza.
func (q *RequestQueue) Stop(ctx context.Context) error {
	started := true
	q.startOnce.Do(func() {
		// nunca arrancó: no hay worker que esperar
		started = false
		close(q.doneCh)
	})

	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.stopCh)
		q.cancel()
	})

	if started {
		select {
		case <-q.doneCh:
		case <-ctx.Done():
			return fmt.Errorf("request queue stop: %w", ctx.Err())
		}
	}

	q.drain()
	return nil
}

func (q *RequestQueue) drain() {
	q.mu.Lock()
	pending := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, t := range pending {
		t.fail(domainerrors.ErrQueueClosed)
		q.failed.Add(1)
		q.metrics.RecordQueueTask(t.priority.String(), "closed")
	}
	q.metrics.SetQueueDepth(0)
}

func (q *RequestQueue) worker() {
	defer close(q.doneCh)

	for {
		t, ok := q.next()
		if !ok {
			return
		}
		if t != nil {
			q.process(t)
		}
	}
}

// next saca la próxima tarea o espera hasta PollInterval; ok=false al detenerse
func (q *RequestQueue) next() (*task, bool) {
	select {
	case <-q.stopCh:
		return nil, false
	default:
	}

	q.mu.Lock()
	if len(q.tasks) > 0 {
		t := heap.Pop(&q.tasks).(*task)
		depth := len(q.tasks)
		q.mu.Unlock()
		q.metrics.SetQueueDepth(depth)
		return t, true
	}
	q.mu.Unlock()

	select {
	case <-q.signal:
	case <-q.clock.After(q.config.PollInterval):
	case <-q.stopCh:
		return nil, false
	}
	return nil, true
}

func (q *RequestQueue) process(t *task) {
	label := t.priority.String()

	// deadline antes de ejecutar, no después
	if q.expired(t) {
		q.timeout(t)
		return
	}

	waitStart := q.clock.Now()
	for !q.governor.TryReserve() {
		wait := q.governor.WaitDuration()
		if wait < minGovernorWait {
			wait = minGovernorWait
		}
		if remaining := t.deadline.Sub(q.clock.Now()); remaining < wait {
			wait = remaining
		}

		logging.Debug(q.ctx, "Waiting for rate budget", logging.Fields{
			logging.FieldPriority: label,
			logging.FieldWaitMs:   wait.Milliseconds(),
		})

		if wait > 0 {
			select {
			case <-q.clock.After(wait):
			case <-q.stopCh:
				t.fail(domainerrors.ErrQueueClosed)
				q.failed.Add(1)
				q.metrics.RecordQueueTask(label, "closed")
				return
			}
		}

		if q.expired(t) {
			q.timeout(t)
			return
		}
	}
	now := q.clock.Now()
	q.metrics.ObserveGovernorWait(now.Sub(waitStart).Seconds())
	q.metrics.ObserveQueueWait(label, now.Sub(t.enqueuedAt).Seconds())

	err := q.execute(t)
	q.processed.Add(1)
	if err != nil {
		q.failed.Add(1)
		q.metrics.RecordQueueTask(label, "error")
		logging.WarnWithError(q.ctx, "Queued task failed", err, logging.Fields{
			logging.FieldPriority:   label,
			logging.FieldQueueDepth: q.Depth(),
		})
		return
	}
	q.metrics.RecordQueueTask(label, "success")
}

// execute aísla panics: el worker nunca muere por una tarea
func (q *RequestQueue) execute(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queued task panicked: %v", r)
			t.fail(err)
		}
	}()
	return t.run(q.ctx)
}

func (q *RequestQueue) expired(t *task) bool {
	return q.clock.Now().After(t.deadline)
}

func (q *RequestQueue) timeout(t *task) {
	waited := q.clock.Now().Sub(t.enqueuedAt)
	t.fail(fmt.Errorf("%w: waited %s in queue", domainerrors.ErrQueueTimeout, waited))
	q.timedOut.Add(1)
	q.failed.Add(1)
	q.metrics.RecordQueueTask(t.priority.String(), "timeout")
	logging.Warn(q.ctx, "Queued task expired before execution", logging.Fields{
		logging.FieldPriority:   t.priority.String(),
		logging.FieldQueueDepth: q.Depth(),
		"waited":                waited.String(),
	})
}

// Depth tareas pendientes
func (q *RequestQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Stats contadores acumulados de la cola
type Stats struct {
	Depth     int
	Enqueued  int64
	Processed int64
	Failed    int64
	TimedOut  int64
}

func (q *RequestQueue) Stats() Stats {
	return Stats{
		Depth:     q.Depth(),
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		TimedOut:  q.timedOut.Load(),
	}
}
