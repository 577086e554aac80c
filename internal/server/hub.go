package server

import (
	"sync"

	"crossfade/internal/tasks"
)

// Hub fans progress updates out to SSE subscribers.
//
// Implements [tasks.ProgressSink]. Delivery is best-effort: a subscriber whose
// channel is full misses the update, the orchestrator is never blocked by a
// slow consumer.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	jobID string // empty subscribes to every job
	ch    chan tasks.ProgressUpdate
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers for updates of one job (or all jobs when jobID is
// empty). The returned cancel func must be called to release the subscription.
func (h *Hub) Subscribe(jobID string) (<-chan tasks.ProgressUpdate, func()) {
	sub := &subscriber{
		jobID: jobID,
		ch:    make(chan tasks.ProgressUpdate, 16),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers the update to every matching subscriber without blocking.
func (h *Hub) Publish(update tasks.ProgressUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.jobID != "" && sub.jobID != update.JobID {
			continue
		}
		select {
		case sub.ch <- update:
		default:
			// Subscriber is not keeping up, drop the update
		}
	}
}
