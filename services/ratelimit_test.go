package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func testLimiterConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEntries:      100,
		CleanupInterval: 50 * time.Millisecond,
		EntryTTL:        100 * time.Millisecond,
	}
}

func TestRateLimiterBasics(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	assert.True(t, limiter.allowRequest("192.168.1.1", 2, time.Minute), "First request should be allowed")
	assert.True(t, limiter.allowRequest("192.168.1.1", 2, time.Minute), "Second request should be allowed")
	assert.False(t, limiter.allowRequest("192.168.1.1", 2, time.Minute), "Third request should be blocked")

	assert.True(t, limiter.allowRequest("192.168.1.2", 2, time.Minute), "Different IP should be allowed")
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	app := fiber.New()
	app.Use(limiter.Middleware(2, time.Minute))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("test")
	})

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", "/test", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimiterTokenRefill(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	ip := "192.168.1.3"
	for i := 0; i < 2; i++ {
		assert.True(t, limiter.allowRequest(ip, 2, 50*time.Millisecond), "Request %d should be allowed", i+1)
	}
	assert.False(t, limiter.allowRequest(ip, 2, 50*time.Millisecond))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.allowRequest(ip, 2, 50*time.Millisecond), "Request should be allowed after refill")
}

func TestRateLimiterEvictsOldest(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.MaxEntries = 2
	limiter := NewRateLimiter(cfg)
	defer limiter.Stop()

	limiter.allowRequest("10.0.0.1", 1, time.Minute)
	time.Sleep(time.Millisecond)
	limiter.allowRequest("10.0.0.2", 1, time.Minute)
	time.Sleep(time.Millisecond)
	limiter.allowRequest("10.0.0.3", 1, time.Minute)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.entries, 2)
	assert.NotContains(t, limiter.entries, "10.0.0.1")
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(testLimiterConfig())
	defer limiter.Stop()

	limiter.allowRequest("test1", 1, time.Minute)
	limiter.allowRequest("test2", 1, time.Minute)

	time.Sleep(250 * time.Millisecond)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.entries)
}
