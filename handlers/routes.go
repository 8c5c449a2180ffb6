package handlers

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the queue API on api. limit guards the routes that
// upload or process images; pass nil to leave them unthrottled.
func RegisterRoutes(api fiber.Router, h *ImageHandler, limit fiber.Handler) {
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	api.Get("/formats", h.Formats)
	api.Post("/geo/parse", h.ParseGeo)
	api.Get("/session", h.Session)

	api.Post("/images", limit, h.Upload)
	api.Get("/images", h.List)
	api.Delete("/images", h.Clear)
	api.Get("/images/:id", h.GetImage)
	api.Delete("/images/:id", h.DeleteImage)
	api.Patch("/images/:id/metadata", h.UpdateMetadata)
	api.Patch("/images/:id/format", h.UpdateFormat)
	api.Post("/images/:id/retry", limit, h.Retry)
	api.Post("/images/:id/boost/retry", limit, h.RetryBoost)
	api.Post("/images/:id/boost/skip", h.SkipBoost)
	api.Get("/images/:id/download", h.Download)
	api.Get("/images/:id/metadata/embedded", h.Embedded)

	api.Get("/queue/settings", h.GetSettings)
	api.Put("/queue/settings", h.UpdateSettings)
	api.Post("/queue/compress", limit, h.Compress)
	api.Post("/queue/boost", limit, h.Boost)
	api.Post("/queue/boost/skip", h.SkipAllBoost)
}
