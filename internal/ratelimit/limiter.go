package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Waiter is the part of a limiter the data path depends on.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Limiter is a token bucket shared by every task talking to one provider.
// It admits at most rps requests per second with the given burst.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	waits   int64
	waited  time.Duration
}

// Stats summarises limiter usage for logging.
type Stats struct {
	RPS     float64
	Burst   int
	Waits   int64
	Delayed time.Duration
}

// NewLimiter creates a limiter. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	l.mu.Lock()
	l.waits++
	l.waited += time.Since(start)
	l.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the limiter configuration and usage.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		RPS:     float64(l.limiter.Limit()),
		Burst:   l.limiter.Burst(),
		Waits:   l.waits,
		Delayed: l.waited,
	}
}
