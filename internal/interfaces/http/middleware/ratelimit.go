package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rouna/storefront/internal/interfaces/http/dto"
	"golang.org/x/time/rate"
)

// KeyedLimiter holds one token bucket per key
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter allows perMinute sustained requests per key with the given
// burst. Buckets untouched for ten minutes are dropped on the next call.
func NewKeyedLimiter(perMinute, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes a token for key and reports whether one was available. When
// it was not, retryAfter says how long until the next token.
func (l *KeyedLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, k)
		}
	}

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Burst returns the bucket size
func (l *KeyedLimiter) Burst() int {
	return l.burst
}

// RateLimitByKey rejects a request with 429 when its key has no token left.
// An empty key falls back to the client IP.
func RateLimitByKey(limiter *KeyedLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			key = c.ClientIP()
		}

		ok, retryAfter := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeRateLimited, "Too many requests. Please try again later.", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// UserKey keys rate limits by the authenticated user
func UserKey(c *gin.Context) string {
	if id, ok := GetUserID(c); ok {
		return "user:" + id.String()
	}
	return ""
}
