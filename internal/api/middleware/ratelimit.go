package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-IP token bucket rate limiter
// ──────────────────────────────────────────────────────────────────────────────

// ipBucket tracks the token balance for a single client IP.
type ipBucket struct {
	tokens   float64
	lastSeen time.Time
}

// limiter holds all buckets behind one mutex.  Contention is negligible at
// the request rates a single demo account sees.
type limiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	rate      float64 // tokens added per second
	burst     float64 // bucket capacity
	lastSweep time.Time
}

const (
	bucketIdleTTL = 10 * time.Minute
	sweepEvery    = 5 * time.Minute
)

func newLimiter(rps int) *limiter {
	burst := float64(rps)
	if burst < 10 {
		burst = 10
	}
	return &limiter{
		buckets:   make(map[string]*ipBucket),
		rate:      float64(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// take refills the caller's bucket for the elapsed time, then tries to spend
// one token.  Idle buckets are swept opportunistically so the map stays
// bounded without a background goroutine.
func (l *limiter) take(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > sweepEvery {
		for ip, b := range l.buckets {
			if now.Sub(b.lastSeen) > bucketIdleTTL {
				delete(l.buckets, ip)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &ipBucket{tokens: l.burst, lastSeen: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimitMiddleware returns a gin.HandlerFunc enforcing a per-IP token
// bucket of rps requests per second.  Clients over the limit get 429.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	l := newLimiter(rps)
	return func(c *gin.Context) {
		if !l.take(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
