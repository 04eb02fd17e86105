package exporters

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/metrics"
)

// DefaultQueueCapacity bounds the in-flight metrics queue per spec.md §5:
// multi-producer, bounded, drop-oldest overflow.
const DefaultQueueCapacity = 256

// Manager fans metrics out to every registered exporter from a single
// background goroutine, so a slow or stuck exporter never backs up onto
// the request path. Submit is non-blocking from every caller's point of
// view: a full queue drops its oldest entry rather than applying
// backpressure.
type Manager struct {
	logger    *zap.Logger
	exporters []MetricsExporter
	queue     chan *metrics.RequestMetrics
	dropped   atomic.Uint64

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewManager starts the drain loop immediately. Add appends to the
// exporter list without locking and the drain loop reads that list without
// locking, so Add is not synchronized with exports already in progress.
func NewManager(logger *zap.Logger, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	mgr := &Manager{
		logger:   logger,
		queue:    make(chan *metrics.RequestMetrics, capacity),
		shutdown: make(chan struct{}),
	}
	mgr.wg.Add(1)
	go mgr.drain()
	return mgr
}

func (mgr *Manager) Add(exp MetricsExporter) {
	mgr.exporters = append(mgr.exporters, exp)
}

// Dropped returns the count of metrics records discarded to queue overflow.
func (mgr *Manager) Dropped() uint64 {
	return mgr.dropped.Load()
}

// Submit enqueues m for export, dropping the oldest queued record if the
// queue is full. Never blocks.
func (mgr *Manager) Submit(m *metrics.RequestMetrics) {
	select {
	case mgr.queue <- m:
		return
	default:
	}

	select {
	case <-mgr.queue:
		mgr.dropped.Add(1)
	default:
	}

	select {
	case mgr.queue <- m:
	default:
		mgr.dropped.Add(1)
	}
}

func (mgr *Manager) drain() {
	defer mgr.wg.Done()
	for {
		select {
		case m, ok := <-mgr.queue:
			if !ok {
				return
			}
			mgr.exportAll(m)
		case <-mgr.shutdown:
			mgr.drainRemaining()
			return
		}
	}
}

func (mgr *Manager) drainRemaining() {
	for {
		select {
		case m := <-mgr.queue:
			mgr.exportAll(m)
		default:
			return
		}
	}
}

func (mgr *Manager) exportAll(m *metrics.RequestMetrics) {
	ctx := context.Background()
	for _, exp := range mgr.exporters {
		if err := exp.Export(ctx, m); err != nil {
			mgr.logger.Warn("metrics export failed",
				zap.String("exporter", exp.Name()),
				zap.String("request_id", m.RequestID),
				zap.Error(err))
		}
	}
}

// Shutdown stops the drain loop after flushing whatever is already queued.
// It does not wait for in-flight Submit callers.
func (mgr *Manager) Shutdown() {
	close(mgr.shutdown)
	mgr.wg.Wait()
}
