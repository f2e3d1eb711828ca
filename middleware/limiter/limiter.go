package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sweetpotato0/wanderai/middleware"
)

// ErrRateLimitExceeded indicates rate limit has been exceeded
var ErrRateLimitExceeded = middleware.ErrRateLimitExceeded

const (
	anonymousKey = "anonymous"
	idleAfter    = 10 * time.Minute
	pruneAbove   = 1024
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per caller. Callers are told apart by the
// client identity on the request context, then by session id. Each caller
// may send maxPerMinute messages per minute with bursts of the same size.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	buckets      map[string]*bucket
	now          func() time.Time
}

// NewRateLimiter creates a rate limiting middleware
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxPerMinute: maxPerMinute,
		buckets:      make(map[string]*bucket),
		now:          time.Now,
	}
}

// Name returns the middleware name
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute checks rate limit
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.maxPerMinute <= 0 {
		return next(ctx)
	}
	if !m.allow(bucketKey(ctx)) {
		return ErrRateLimitExceeded
	}
	return next(ctx)
}

func bucketKey(ctx *middleware.Context) string {
	switch {
	case ctx.Client() != "":
		return "client:" + ctx.Client()
	case ctx.SessionID != "":
		return "session:" + ctx.SessionID
	default:
		return anonymousKey
	}
}

func (m *RateLimiter) allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		limit := rate.Every(time.Minute / time.Duration(m.maxPerMinute))
		b = &bucket{limiter: rate.NewLimiter(limit, m.maxPerMinute)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	if len(m.buckets) > pruneAbove {
		m.pruneLocked(now)
	}
	return b.limiter.AllowN(now, 1)
}

func (m *RateLimiter) pruneLocked(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > idleAfter {
			delete(m.buckets, key)
		}
	}
}

// Reset forgets every bucket.
func (m *RateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[string]*bucket)
}

// Tracked returns the number of callers with a live bucket.
func (m *RateLimiter) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
