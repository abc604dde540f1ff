package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// pollFrom issues a GET from the given client address.
func pollFrom(r http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func limitedRouter(rl *RateLimiter, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(rl.Handler())
	okH := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/conversations/:id/messages", okH)
	r.GET("/channel/status", okH)
	r.GET("/customer/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestKeyByConversationOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyByConversationOrIP()

	got := map[string]string{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-User") != "" {
			c.Set(ctxKeyUserID, c.GetHeader("X-Test-User"))
		}
		got[c.Request.URL.Path] = keyFn(c)
	})
	r.GET("/conversations/:id/messages", func(c *gin.Context) {})
	r.GET("/channel/status", func(c *gin.Context) {})
	r.GET("/customer/me", func(c *gin.Context) {})

	pollFrom(r, "/conversations/conv_1/messages", "203.0.113.9:1234")
	pollFrom(r, "/channel/status", "203.0.113.9:1234")
	req := httptest.NewRequest(http.MethodGet, "/customer/me", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	req.Header.Set("X-Test-User", "cust-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, map[string]string{
		"/conversations/conv_1/messages": "conv:conv_1@203.0.113.9",
		"/channel/status":                "ip:203.0.113.9",
		"/customer/me":                   "user:cust-7",
	}, got)
}

func TestRateLimiter_BudgetsPerTabAndPerClient(t *testing.T) {
	r := limitedRouter(NewRateLimiter(0.001, 1, nil))
	const nat = "198.51.100.1:1000"

	assert.Equal(t, http.StatusOK, pollFrom(r, "/conversations/conv_a/messages", nat).Code)
	assert.Equal(t, http.StatusOK, pollFrom(r, "/conversations/conv_b/messages", nat).Code, "second tab behind the same NAT")
	assert.Equal(t, http.StatusOK, pollFrom(r, "/conversations/conv_a/messages", "198.51.100.2:1000").Code, "same conversation, other client")
	assert.Equal(t, http.StatusTooManyRequests, pollFrom(r, "/conversations/conv_a/messages", nat).Code)
}

func TestRateLimiter_DeniedEnvelope(t *testing.T) {
	rl := NewRateLimiter(0.5, 1, nil)
	r := limitedRouter(rl, func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })

	require.Equal(t, http.StatusOK, pollFrom(r, "/channel/status", "192.0.2.1:1").Code)
	w := pollFrom(r, "/channel/status", "192.0.2.1:1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{
		"request_id": "rid-1",
		"code":       "rate_limited",
		"message":    "rate limit exceeded",
	}, body)
}

func TestRateLimiter_ReplaysAreNotLimited(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, nil)
	replay := func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
	r := limitedRouter(rl, replay)

	require.Equal(t, http.StatusOK, pollFrom(r, "/channel/status", "192.0.2.7:1").Code)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/channel/status", nil)
		req.RemoteAddr = "192.0.2.7:1"
		req.Header.Set("X-Replay", "1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "replay %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, pollFrom(r, "/channel/status", "192.0.2.7:1").Code)
}

func TestIsRateBypass(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, IsRateBypass(c))
	c.Set(ctxKeyRateBypass, "yes")
	assert.False(t, IsRateBypass(c), "non-bool marker")
	c.Set(ctxKeyRateBypass, true)
	assert.True(t, IsRateBypass(c))
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	for rps, want := range map[float64]string{10: "1", 1: "1", 0.5: "2", 0.1: "10", 0: "1"} {
		assert.Equal(t, want, NewRateLimiter(rps, 1, nil).retryAfter(), "rps=%v", rps)
	}
	unlimited := NewRateLimiter(1, 1, nil)
	unlimited.rps = rate.Inf
	assert.Equal(t, "1", unlimited.retryAfter())
}

func TestRateLimiter_BucketsReusedAndEvicted(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	assert.Equal(t, 1, rl.burst, "burst is at least one")

	first := rl.getVisitor("conv:a@ip")
	assert.Same(t, first, rl.getVisitor("conv:a@ip"))

	rl.mu.Lock()
	rl.visitors["conv:stale@ip"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-2 * rl.ttl)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	rl.getVisitor("conv:b@ip")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "conv:stale@ip")
	assert.Contains(t, rl.visitors, "conv:a@ip")
	assert.Contains(t, rl.visitors, "conv:b@ip")
}
