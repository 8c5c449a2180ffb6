package services

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// SecurityConfig lists the response headers set on every request.
type SecurityConfig struct {
	CSPPolicy         string
	HSTSMaxAge        int64
	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
}

// DefaultSecurityConfig allows blob: and data: images so previews and
// downloads of processed files work in the browser.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		CSPPolicy:         "default-src 'self'; img-src 'self' data: blob: https:; style-src 'self' 'unsafe-inline'; script-src 'self'; connect-src 'self'; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'",
		HSTSMaxAge:        31536000,
		FrameOptions:      "DENY",
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "camera=(), microphone=(), geolocation=(), payment=()",
	}
}

// SecurityHeaders returns a middleware that sets cfg's headers.
func SecurityHeaders(cfg SecurityConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.CSPPolicy != "" {
			c.Set("Content-Security-Policy", cfg.CSPPolicy)
		}
		if cfg.HSTSMaxAge > 0 {
			c.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge))
		}
		if cfg.FrameOptions != "" {
			c.Set("X-Frame-Options", cfg.FrameOptions)
		}
		if cfg.ReferrerPolicy != "" {
			c.Set("Referrer-Policy", cfg.ReferrerPolicy)
		}
		if cfg.PermissionsPolicy != "" {
			c.Set("Permissions-Policy", cfg.PermissionsPolicy)
		}
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Permitted-Cross-Domain-Policies", "none")
		return c.Next()
	}
}
