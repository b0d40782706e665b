package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	apiContext "leadhook/internal/api/context"
	"leadhook/internal/platform/config"
)

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(config.RateLimitConfig{})
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("k", 3))
	}
	assert.False(t, rl.Allow("k", 3))

	now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("k", 3))
	assert.False(t, rl.Allow("k", 3))
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := NewRateLimiter(config.RateLimitConfig{})
	rl.now = func() time.Time { return now }

	rl.Allow("k", 1)
	now = now.Add(idleTTL + time.Second)
	rl.evictIdle()

	_, ok := rl.store.Load("k")
	assert.False(t, ok)
}

func TestRateLimiter_HandleKeysByTenant(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{APIWritePerMinute: 1})
	h := rl.Handle(LimitAPIWrite)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(orgID string) int {
		req := httptest.NewRequest("POST", "/webhooks", nil)
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Tenant, &apiContext.TenantContext{OrgID: orgID}))
		rr := httptest.NewRecorder()
		h(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, call("org_1"))
	assert.Equal(t, http.StatusTooManyRequests, call("org_1"))
	assert.Equal(t, http.StatusNoContent, call("org_2"))
}
