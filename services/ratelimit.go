package services

import (
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig bounds how many requests each client may send per window.
type RateLimitConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	EntryTTL        time.Duration `yaml:"entry_ttl"`
	Capacity        int           `yaml:"capacity"`
	Window          time.Duration `yaml:"window"`
	EnableDebug     bool          `yaml:"enable_debug"`
}

type rlEntry struct {
	tokens   int
	refillAt time.Time
	lastUsed time.Time
}

// RateLimiter is a per-client fixed-window limiter with LRU eviction, used on
// the upload and processing routes.
type RateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*rlEntry
	config      RateLimitConfig
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = 30 * time.Minute
	}
	rl := &RateLimiter{
		entries:     make(map[string]*rlEntry),
		config:      config,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Middleware returns a Fiber middleware for rate limiting
func (rl *RateLimiter) Middleware(capacity int, refill time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := clientIP(c)
		if ip == "" {
			return c.Next()
		}
		if !rl.allowRequest(ip, capacity, refill) {
			if rl.config.EnableDebug {
				log.Printf("Rate limit exceeded for IP: %s", ip)
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}
		return c.Next()
	}
}

func (rl *RateLimiter) allowRequest(ip string, capacity int, refill time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.entries[ip]
	if !ok || now.After(entry.refillAt) {
		entry = &rlEntry{tokens: capacity, refillAt: now.Add(refill)}
		rl.entries[ip] = entry
	}
	entry.lastUsed = now

	if len(rl.entries) > rl.config.MaxEntries {
		rl.evictOldest(ip)
	}

	if entry.tokens <= 0 {
		return false
	}
	entry.tokens--
	return true
}

// evictOldest drops the least recently used entry other than keep.
func (rl *RateLimiter) evictOldest(keep string) {
	var oldestIP string
	var oldest time.Time
	for ip, e := range rl.entries {
		if ip == keep {
			continue
		}
		if oldestIP == "" || e.lastUsed.Before(oldest) {
			oldestIP, oldest = ip, e.lastUsed
		}
	}
	if oldestIP != "" {
		delete(rl.entries, oldestIP)
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-rl.config.EntryTTL)
	for ip, e := range rl.entries {
		if e.lastUsed.Before(cutoff) {
			delete(rl.entries, ip)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// clientIP prefers the leftmost X-Forwarded-For address, then X-Real-IP.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		if ip := net.ParseIP(realIP); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(c.IP()); ip != nil {
		return ip.String()
	}
	return ""
}
