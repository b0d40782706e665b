package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	apiContext "leadhook/internal/api/context"
	"leadhook/internal/pkg/errors"
	"leadhook/internal/platform/config"
)

const (
	LimitAPIRead  = "api_read"
	LimitAPIWrite = "api_write"

	defaultLimit = 100
	idleTTL      = 10 * time.Minute
)

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

// RateLimiter is a per-key token bucket refilled continuously over one minute.
type RateLimiter struct {
	store  sync.Map // key -> *bucket
	limits map[string]int
	now    func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits: map[string]int{
			LimitAPIRead:  cfg.APIReadPerMinute,
			LimitAPIWrite: cfg.APIWritePerMinute,
		},
		now: time.Now,
	}
}

// Run evicts idle buckets until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	now := rl.now()
	rl.store.Range(func(key, value interface{}) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.lastAccess) > idleTTL {
			rl.store.Delete(key)
		}
		b.mu.Unlock()
		return true
	})
}

func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	refill := int(now.Sub(b.lastRefill).Seconds() * float64(limit) / 60.0)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > limit {
			b.tokens = limit
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) limit(limitType string) int {
	if l, ok := rl.limits[limitType]; ok && l > 0 {
		return l
	}
	return defaultLimit
}

// Handle limits requests per tenant, or per client address before tenant
// resolution.
func (rl *RateLimiter) Handle(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if tenant, ok := apiContext.TenantFrom(r.Context()); ok {
				key = fmt.Sprintf("%s:%s", tenant.OrgID, limitType)
			} else {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				key = fmt.Sprintf("%s:%s", host, limitType)
			}

			if !rl.Allow(key, rl.limit(limitType)) {
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
