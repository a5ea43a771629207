package docclient

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPollTimeout reports that the attempt budget ran out before the
// document reached a terminal state. The document may still finish on the
// server side; this is not a processing failure.
var ErrPollTimeout = errors.New("polling gave up before a terminal state")

// ErrPollActive reports that a polling loop for the same document id is
// already running on this poller.
var ErrPollActive = errors.New("a poll for this document is already active")

// StatusSource is the query the poller repeats. *Client satisfies it.
type StatusSource interface {
	Status(ctx context.Context, id string) (StatusSnapshot, error)
}

// Poller repeatedly queries a document's status at a fixed interval until
// it turns terminal. At most one loop per document id runs per Poller.
type Poller struct {
	source   StatusSource
	interval time.Duration

	mu     sync.Mutex
	active map[string]struct{}
}

func NewPoller(source StatusSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		source:   source,
		interval: interval,
		active:   make(map[string]struct{}),
	}
}

// Poll queries the document status up to maxAttempts times, invoking
// onUpdate with every observed snapshot including non-terminal ones. It
// returns the terminal snapshot, or ErrPollTimeout when attempts run out,
// or the context error on cancellation. No onUpdate call happens after
// cancellation: responses already in flight are discarded.
//
// A fixed interval is used rather than backoff; completion time is expected
// within low tens of seconds and the total wait is bounded by
// maxAttempts times the interval.
func (p *Poller) Poll(
	ctx context.Context,
	id string,
	onUpdate func(StatusSnapshot),
	maxAttempts int,
) (StatusSnapshot, error) {
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	if !p.tryAcquire(id) {
		return StatusSnapshot{}, ErrPollActive
	}
	defer p.release(id)

	for attempt := 1; ; attempt++ {
		snapshot, err := p.source.Status(ctx, id)
		if ctx.Err() != nil {
			return StatusSnapshot{}, ctx.Err()
		}
		if err != nil {
			return StatusSnapshot{}, err
		}

		if onUpdate != nil {
			onUpdate(snapshot)
		}
		if snapshot.Status.IsTerminal() {
			return snapshot, nil
		}
		if attempt >= maxAttempts {
			return snapshot, ErrPollTimeout
		}

		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return StatusSnapshot{}, ctx.Err()
		}
	}
}

func (p *Poller) tryAcquire(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, running := p.active[id]; running {
		return false
	}
	p.active[id] = struct{}{}
	return true
}

func (p *Poller) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, id)
}
