package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/shawn-cake/smooshboost/db"
	"github.com/shawn-cake/smooshboost/handlers"
	"github.com/shawn-cake/smooshboost/middleware"
	"github.com/shawn-cake/smooshboost/models"
	"github.com/shawn-cake/smooshboost/services"
)

func main() {
	config, err := services.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		imageRepo models.ImageRepositoryInterface
		dbPing    fiber.Handler
	)
	if config.Database.URL != "" {
		if err := db.Connect(config.Database.URL, config.Database.ConnectAttempts); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		imageRepo = models.NewImageRepository(db.Get)
		dbPing = middleware.DBPing(func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/api/formats", "/api/geo/parse", "/api/session":
				return true
			}
			return false
		})
	} else {
		log.Printf("DATABASE_URL not set, keeping the queue in memory")
		imageRepo = models.NewMemoryImageRepository()
	}

	storage, err := services.NewStorageFromEnv()
	if err != nil {
		log.Fatalf("Failed to configure storage: %v", err)
	}

	if config.Compression.TinyPNG.BaseURL == "" {
		log.Printf("TinyPNG is not configured, PNG output uses the local optimizer")
	}
	router := services.NewCompressionRouterFromConfig(config.Compression)
	injector := services.NewMetadataInjector(config.Metadata)
	pipeline := services.NewPipeline(router, injector)
	queue := services.NewQueue(imageRepo, storage, pipeline,
		services.NewFileValidator(config.Limits), services.StdDecoder{}, config.Thumbnail)

	limiter := services.NewRateLimiter(config.RateLimiting)
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:    config.Server.BodyLimit,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(services.SecurityHeaders(services.DefaultSecurityConfig()))
	app.Use(compress.New())
	app.Use(cors.New())

	app.Static("/", "./static", fiber.Static{
		Compress:      true,
		CacheDuration: 3600,
	})

	if local, ok := storage.(*services.LocalStorage); ok {
		app.Static("/uploads/thumbs", filepath.Join(local.Dir(), "thumbs"), fiber.Static{
			CacheDuration: 86400,
		})
	}

	api := app.Group("/api")
	if dbPing != nil {
		api.Use(dbPing)
	}
	handlers.RegisterRoutes(api, handlers.NewImageHandler(queue),
		limiter.Middleware(config.RateLimiting.Capacity, config.RateLimiting.Window))

	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api") {
			return fiber.ErrNotFound
		}
		return c.SendStatus(fiber.StatusNotFound)
	})

	addr := fmt.Sprintf(":%d", config.Server.Port)
	log.Printf("Server starting on port %d", config.Server.Port)
	log.Fatal(app.Listen(addr))
}
