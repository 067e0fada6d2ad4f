// Package telemetry provides fire-and-forget delivery of analytics events
// to the sink. Callers hand events to a Dispatcher and continue immediately;
// a bounded worker pool performs the inserts in the background. Telemetry
// never blocks and never fails a request.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonquils-io/jonquils/internal/sink"
)

const (
	// DefaultQueueSize bounds the in-flight event buffer. When the buffer
	// is full new events are dropped, never queued unboundedly.
	DefaultQueueSize = 4096

	// DefaultWorkers is the number of goroutines draining the buffer.
	DefaultWorkers = 4

	// drainTimeout caps how long Close waits for in-flight inserts.
	drainTimeout = 5 * time.Second
)

// Sink is the destination for dispatched events. sink.Client satisfies it.
type Sink interface {
	Insert(ctx context.Context, event sink.Event) bool
}

// Dispatcher fans events out to the sink through a bounded queue.
//
// Enqueue is non-blocking: if the queue is full the event is counted as
// dropped and discarded. This is the load-shedding contract that keeps
// request latency independent of sink health.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	queue   chan sink.Event
	dropped atomic.Uint64
	wg      sync.WaitGroup
	closed  atomic.Bool
	once    sync.Once
}

// NewDispatcher starts the worker pool and returns a ready dispatcher.
// Non-positive queueSize or workers fall back to the defaults.
func NewDispatcher(s Sink, logger *slog.Logger, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	if workers <= 0 {
		workers = DefaultWorkers
	}

	d := &Dispatcher{
		sink:   s,
		logger: logger,
		queue:  make(chan sink.Event, queueSize),
	}

	d.wg.Add(workers)

	for i := 0; i < workers; i++ {
		go d.worker()
	}

	logger.Info("telemetry dispatcher started",
		slog.Int("queue_size", queueSize),
		slog.Int("workers", workers),
	)

	return d
}

// Enqueue hands an event to the worker pool. It returns immediately in all
// cases. The return value reports acceptance into the queue, not delivery.
func (d *Dispatcher) Enqueue(event sink.Event) bool {
	if d.closed.Load() {
		d.dropped.Add(1)

		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.dropped.Add(1)

		return false
	}
}

// Dropped returns the number of events shed because the queue was full or
// the dispatcher was closed.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting events, drains the queue, and waits for workers up
// to drainTimeout. Safe to call multiple times.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.queue)

		done := make(chan struct{})

		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.logger.Info("telemetry dispatcher drained",
				slog.Uint64("dropped_total", d.dropped.Load()),
			)
		case <-time.After(drainTimeout):
			d.logger.Warn("telemetry dispatcher drain timed out, abandoning in-flight events",
				slog.Uint64("dropped_total", d.dropped.Load()),
			)
		}
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for event := range d.queue {
		// Insert owns its own timeout and never returns an error.
		d.sink.Insert(context.Background(), event)
	}
}
