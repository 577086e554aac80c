package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"crossfade/internal/shared"
	"github.com/charmbracelet/log"
)

// Dispatcher runs conversion jobs on a bounded worker pool.
//
// One job is processed by exactly one worker; jobs share no mutable state, so
// workers never coordinate beyond the queue itself. Enqueue only after the job
// row is committed, the worker re-reads it from storage.
type Dispatcher struct {
	orchestrator *Orchestrator
	queue        chan string
	workers      int
	logger       *log.Logger

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewDispatcher creates a dispatcher with the given worker count,
// clamped to [1, 10].
func NewDispatcher(orchestrator *Orchestrator, workers int, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if workers <= 0 {
		workers = 2
	}
	if workers > 10 {
		workers = 10
	}
	return &Dispatcher{
		orchestrator: orchestrator,
		queue:        make(chan string, 64),
		workers:      workers,
		logger:       logger,
	}
}

// Start launches the worker goroutines. Workers exit when the context is
// cancelled or the queue is closed via Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Debug("dispatcher started", "workers", d.workers)
}

// Enqueue queues a committed job for processing. Returns an error when the
// queue is full rather than blocking the caller.
func (d *Dispatcher) Enqueue(jobID string) error {
	select {
	case d.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("%w: job queue is full", shared.ErrServiceUnavailable)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	close(d.queue)
	d.wg.Wait()
	d.started = false
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-d.queue:
			if !ok {
				return
			}
			if err := d.orchestrator.Process(ctx, jobID); err != nil {
				d.logger.Error("job processing failed", "job", jobID, "error", err)
			}
		}
	}
}
