package core

// limiter.go bounds how many documents are processed at once.
//
// Parsing, validation and regeneration all hold a whole document in memory,
// so the limiter caps parallel work with a semaphore. When every slot is
// taken, callers wait up to maxWait and then get ErrTooManyDocuments.
// WaitForDrain lets shutdown wait for in-flight documents.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyDocuments is returned when no slot frees up within the wait
// time. Clients should retry after a short delay.
var ErrTooManyDocuments = errors.New("too many documents in progress, please try again later")

// DefaultMaxConcurrent is the default limit for parallel documents.
const DefaultMaxConcurrent = 8

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// DocumentLimiter caps concurrent document processing.
type DocumentLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewDocumentLimiter allows at most maxConcurrent documents at once.
// Callers that cannot get a slot within maxWait receive ErrTooManyDocuments.
func NewDocumentLimiter(maxConcurrent int, maxWait time.Duration) *DocumentLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &DocumentLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's wait time.
// The caller must call Release when done.
func (l *DocumentLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// caller cancellation wins over our own wait timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyDocuments
	}
}

// TryAcquire takes a slot without blocking.
func (l *DocumentLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot. Call exactly once per successful Acquire or
// TryAcquire.
func (l *DocumentLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of documents in progress.
func (l *DocumentLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *DocumentLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *DocumentLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no documents are in progress or ctx ends.
func (l *DocumentLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of limiter state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for health checks.
func (l *DocumentLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
