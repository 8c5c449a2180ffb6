package middleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shawn-cake/smooshboost/db"
)

// Pinger is a connection pool that can be checked and rebuilt.
type Pinger interface {
	Ping(ctx context.Context) error
	Reconnect() error
}

type pool struct{}

func (pool) Ping(ctx context.Context) error { return db.Ping(ctx) }
func (pool) Reconnect() error               { return db.Reconnect() }

// DBPingConfig tunes RequireConnection. Skip lets routes that never touch
// the repository through without a ping.
type DBPingConfig struct {
	Timeout time.Duration
	Skip    func(c *fiber.Ctx) bool
}

// DBPing guards repository routes with the global pool.
func DBPing(skip func(c *fiber.Ctx) bool) fiber.Handler {
	return RequireConnection(pool{}, DBPingConfig{Timeout: 2 * time.Second, Skip: skip})
}

// RequireConnection pings p before each request and reconnects once when the
// ping fails. Concurrent requests share a single reconnect.
func RequireConnection(p Pinger, cfg DBPingConfig) fiber.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	var mu sync.Mutex

	return func(c *fiber.Ctx) error {
		if cfg.Skip != nil && cfg.Skip(c) {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), cfg.Timeout)
		defer cancel()
		if p.Ping(ctx) == nil {
			return c.Next()
		}

		mu.Lock()
		err := p.Ping(ctx)
		if err != nil {
			log.Printf("Database ping failed: %v. Attempting to reconnect...", err)
			if err = p.Reconnect(); err != nil {
				log.Printf("Failed to reconnect to database: %v", err)
			} else {
				log.Println("Successfully reconnected to the database.")
			}
		}
		mu.Unlock()

		if err != nil {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Database connection is down",
			})
		}
		return c.Next()
	}
}
