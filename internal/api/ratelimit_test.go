package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, perSecond float64, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(perSecond, burst)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_Burst(t *testing.T) {
	rl := newTestLimiter(t, 0.001, 3)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("10.0.0.1")
		require.True(t, ok, "request %d is within the burst", i+1)
	}
	ok, wait := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok, "other clients have their own bucket")
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := newTestLimiter(t, 500, 1)

	ok, _ := rl.Allow("c")
	require.True(t, ok)
	ok, wait := rl.Allow("c")
	require.False(t, ok)
	assert.LessOrEqual(t, wait, 2*time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	ok, _ = rl.Allow("c")
	assert.True(t, ok)
}

func TestRateLimiter_DeniedRequestDoesNotConsume(t *testing.T) {
	rl := newTestLimiter(t, 100, 1)

	ok, _ := rl.Allow("c")
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		rl.Allow("c")
	}
	// A cancelled reservation gives its token back
	time.Sleep(15 * time.Millisecond)
	ok, _ = rl.Allow("c")
	assert.True(t, ok)
}

func TestRateLimiter_ZeroBurstDeniesAll(t *testing.T) {
	rl := newTestLimiter(t, 10, 0)
	ok, _ := rl.Allow("c")
	assert.False(t, ok)
}

func TestRateLimiter_ForgetIdle(t *testing.T) {
	rl := newTestLimiter(t, 1, 1)
	rl.Allow("stale")
	rl.Allow("fresh")

	rl.mu.Lock()
	rl.clients["stale"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.forgetIdle(time.Now().Add(-clientIdleTTL))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "stale")
	assert.Contains(t, rl.clients, "fresh")
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newTestLimiter(t, 1.0/30, 1)

	var handled atomic.Int32
	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/control", func(c *gin.Context) {
		handled.Add(1)
		c.Status(http.StatusNoContent)
	})

	post := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/control", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, post("192.168.1.1").Code)

	w := post("192.168.1.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, int32(1), handled.Load())
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	body := decodeMap(t, w)
	assert.Equal(t, "Too many requests", body["error"])
	assert.InDelta(t, 30, body["retry_after"], 0.5)

	assert.Equal(t, http.StatusNoContent, post("192.168.1.2").Code)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := newTestLimiter(t, 0.001, 25)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow("shared"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(25), allowed.Load())
}
