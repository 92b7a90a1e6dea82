package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(rate float64, burst int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newMemoryLimiter(rate, burst, clock.Now), clock
}

func TestMemoryLimiter_Burst(t *testing.T) {
	m, _ := newTestLimiter(1, 3)
	ctx := context.Background()
	for i := range 3 {
		d, err := m.Allow(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d is within burst", i)
	}
	d, err := m.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, time.Second, d.RetryAfter, float64(10*time.Millisecond))

	d, _ = m.Allow(ctx, "k2")
	assert.True(t, d.Allowed, "keys are independent")
}

func TestMemoryLimiter_Refill(t *testing.T) {
	m, clock := newTestLimiter(2, 1)
	ctx := context.Background()

	d, _ := m.Allow(ctx, "k")
	require.True(t, d.Allowed)
	d, _ = m.Allow(ctx, "k")
	require.False(t, d.Allowed)

	clock.Advance(600 * time.Millisecond)
	d, _ = m.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_EvictStale(t *testing.T) {
	m, clock := newTestLimiter(1, 1)
	_, _ = m.Allow(context.Background(), "old")
	clock.Advance(staleThreshold + time.Second)
	_, _ = m.Allow(context.Background(), "fresh")

	m.evictStale()
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.buckets, "old")
	assert.Contains(t, m.buckets, "fresh")
}

func TestMemoryLimiter_CloseTwice(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("backend down")
}
func (brokenLimiter) Close() error { return nil }

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	byHeader := func(r *http.Request) string { return r.Header.Get("X-User") }
	reqID := func(*http.Request) string { return "req-1" }

	m, _ := newTestLimiter(0.1, 1)
	h := Middleware(m, "chat", byHeader, reqID, nil)(ok)

	do := func(h http.Handler, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(h, "u1").Code)
	rec := do(h, "u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"RATE_LIMITED"`)
	assert.Contains(t, rec.Body.String(), `"req-1"`)

	assert.Equal(t, http.StatusNoContent, do(h, "").Code, "empty key skips limiting")
	assert.Equal(t, http.StatusNoContent, do(Middleware(brokenLimiter{}, "chat", byHeader, nil, nil)(ok), "u1").Code, "errors fail open")
	assert.Equal(t, http.StatusNoContent, do(Middleware(NoopLimiter{}, "chat", byHeader, nil, nil)(ok), "u1").Code)
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", IPKeyFunc(req))
}
