package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces requests out so a scraping session looks like a person
// browsing rather than a tight fetch loop. Wait blocks until the next
// request may proceed or the context is cancelled.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Recorder receives per-request outcomes. Pacers that implement it
// adjust their delays based on how the site is responding.
type Recorder interface {
	RecordSuccess()
	RecordError()
}

// JitterPacer enforces a randomized minimum gap between requests, shared
// across concurrent workers.
type JitterPacer struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewJitterPacer(minDelay, maxDelay time.Duration) *JitterPacer {
	return &JitterPacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (p *JitterPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastAction)
	delay := p.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	p.lastAction = time.Now()
	return nil
}

func (p *JitterPacer) nextDelay() time.Duration {
	if p.maxDelay <= p.minDelay {
		return p.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(p.maxDelay - p.minDelay)))
	return p.minDelay + jitter
}

// AdaptivePacer widens the gap after repeated failures (a likely sign the
// site is throttling us) and slowly tightens it again while things work.
type AdaptivePacer struct {
	*JitterPacer
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptivePacer(minDelay, maxDelay time.Duration) *AdaptivePacer {
	return &AdaptivePacer{
		JitterPacer:   NewJitterPacer(minDelay, maxDelay),
		maxErrorCount: 3,
		backoffFactor: 1.5,
	}
}

func (a *AdaptivePacer) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < time.Second {
			newMin = time.Second
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *AdaptivePacer) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}

// Nop is a zero-delay pacer for tests and dry runs.
type Nop struct{}

func (Nop) Wait(ctx context.Context) error { return ctx.Err() }
