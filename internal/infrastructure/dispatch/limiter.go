package dispatch

import (
	"context"
	"sync"
)

// Limiter bounds processing fan-out and guarantees at most one in-flight
// run per document id. It is owned by whoever runs the processing loop;
// there is no process-wide instance.
type Limiter struct {
	slots chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 4
	}
	return &Limiter{
		slots:    make(chan struct{}, capacity),
		inflight: make(map[string]struct{}),
	}
}

// TryAcquire atomically claims the per-document guard. A false return means
// another run for the same id is already in flight.
func (l *Limiter) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.inflight[id]; ok {
		return false
	}
	l.inflight[id] = struct{}{}
	return true
}

// Release frees the per-document guard. Safe to call for ids that were
// never acquired.
func (l *Limiter) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, id)
}

// AcquireSlot blocks until a concurrency slot is free, giving the caller
// admission control over total in-flight processing tasks.
func (l *Limiter) AcquireSlot(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) ReleaseSlot() {
	select {
	case <-l.slots:
	default:
	}
}

// InFlight reports the number of currently guarded document ids.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
