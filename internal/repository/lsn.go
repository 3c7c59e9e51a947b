package repository

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

// LSNTracker holds a monotonically advancing LSN that callers can wait on.
type LSNTracker struct {
	mu      sync.Mutex
	last    domain.LSN
	changed chan struct{}
	closed  bool
}

// NewLSNTracker creates a tracker starting at initial.
func NewLSNTracker(initial domain.LSN) *LSNTracker {
	return &LSNTracker{
		last:    initial,
		changed: make(chan struct{}),
	}
}

// Advance moves the LSN forward. It reports whether the value changed.
func (t *LSNTracker) Advance(lsn domain.LSN) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || lsn <= t.last {
		return false
	}
	t.last = lsn
	close(t.changed)
	t.changed = make(chan struct{})
	return true
}

// Load returns the current LSN.
func (t *LSNTracker) Load() domain.LSN {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Wait blocks until the LSN reaches lsn. timeout bounds the wait when
// positive. It fails with ErrLSNTimeout on timeout, ErrRepositoryClosed
// after Close, or ctx's error.
func (t *LSNTracker) Wait(ctx context.Context, lsn domain.LSN, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return domain.ErrRepositoryClosed
		}
		if t.last >= lsn {
			t.mu.Unlock()
			return nil
		}
		changed, last := t.changed, t.last
		t.mu.Unlock()

		select {
		case <-changed:
		case <-expired:
			return domain.ErrLSNTimeout.WithDetailsf("waiting for %s, last valid %s", lsn, last)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close wakes all waiters with ErrRepositoryClosed.
func (t *LSNTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.changed)
}
