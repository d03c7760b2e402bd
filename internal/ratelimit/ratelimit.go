// Package ratelimit provides a pluggable per-client request limiter.
// The no-op implementation keeps the call sites unconditional when
// limiting is disabled by config.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result reports the limiter decision plus the metadata clients use
// for backoff headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Check(clientID string) Result
}

// Nop allows everything.
type Nop struct {
	MaxRequests int
	Window      time.Duration
}

func (n Nop) Check(string) Result {
	return Result{
		Allowed:   true,
		Limit:     n.MaxRequests,
		Remaining: n.MaxRequests,
		ResetAt:   time.Now().Add(n.Window),
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerClient enforces maxRequests per window for each client id.
type PerClient struct {
	clients     sync.Map
	maxRequests int
	window      time.Duration
	rps         rate.Limit
}

func NewPerClient(maxRequests int, window time.Duration) *PerClient {
	l := &PerClient{
		maxRequests: maxRequests,
		window:      window,
		rps:         rate.Limit(float64(maxRequests) / window.Seconds()),
	}
	go l.cleanup()
	return l
}

func (l *PerClient) get(clientID string) *rate.Limiter {
	if v, ok := l.clients.Load(clientID); ok {
		c := v.(*client)
		c.lastSeen = time.Now()
		return c.limiter
	}
	lim := rate.NewLimiter(l.rps, l.maxRequests)
	l.clients.Store(clientID, &client{limiter: lim, lastSeen: time.Now()})
	return lim
}

func (l *PerClient) cleanup() {
	for {
		time.Sleep(time.Minute)
		cutoff := time.Now().Add(-5 * l.window)
		l.clients.Range(func(k, v any) bool {
			if v.(*client).lastSeen.Before(cutoff) {
				l.clients.Delete(k)
			}
			return true
		})
	}
}

func (l *PerClient) Check(clientID string) Result {
	lim := l.get(clientID)
	allowed := lim.Allow()
	remaining := int(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   allowed,
		Limit:     l.maxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(l.window),
	}
}
