// Package http exposes the v1 REST API on fiber.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"scorch/internal/config"
	"scorch/internal/crawler"
	"scorch/internal/jobs"
	"scorch/internal/metrics"
	"scorch/internal/model"
	"scorch/internal/scrape"
	"scorch/internal/store"
)

// PageScraper runs one synchronous scrape. Satisfied by
// services.ScrapeService.
type PageScraper interface {
	Scrape(ctx context.Context, url string, opts *model.ScrapeOptions, cost *scrape.CostTracking) (*model.Document, error)
}

// Server bundles the fiber app with its collaborators.
type Server struct {
	app     *fiber.App
	config  *config.Config
	store   *store.Store
	scraper PageScraper
	mapper  *crawler.Mapper
	cancels *jobs.CancelRegistry
	logger  *slog.Logger

	activeScrapes atomic.Int64
}

// Deps carries everything the handlers need.
type Deps struct {
	Config  *config.Config
	Store   *store.Store
	Scraper PageScraper
	Mapper  *crawler.Mapper
	Cancels *jobs.CancelRegistry
	Redis   *redis.Client
	Logger  *slog.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 8 * 1024 * 1024,
	})

	s := &Server{
		app:     app,
		config:  deps.Config,
		store:   deps.Store,
		scraper: deps.Scraper,
		mapper:  deps.Mapper,
		cancels: deps.Cancels,
		logger:  logger,
	}

	// Request logging + metrics.
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Path(), status, latency.Milliseconds())
		logger.Info("request",
			"request_id", reqID,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", latency.Milliseconds(),
		)
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if s.store == nil {
			dbStatus = "disabled"
		} else if err := s.store.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		status := "ok"
		if dbStatus == "error" || redisStatus == "error" {
			status = "error"
		}
		return c.JSON(fiber.Map{
			"status": status,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	app.Get("/is-production", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"isProduction": deps.Config.Server.IsProduction})
	})

	authMw := authMiddleware(deps.Config)
	rateMw := func(c *fiber.Ctx) error { return c.Next() }
	if deps.Redis != nil {
		rateMw = rateLimitMiddleware(deps.Config, deps.Redis)
	}

	v1 := app.Group("/v1", authMw, rateMw)
	v1.Post("/scrape", s.scrapeHandler)
	v1.Post("/map", s.mapHandler)
	v1.Post("/crawl", s.crawlHandler)
	v1.Get("/crawl/:id", s.crawlStatusHandler)
	v1.Delete("/crawl/:id", s.crawlCancelHandler)
	v1.Get("/crawl/:id/errors", s.crawlErrorsHandler)
	v1.Get("/concurrency-check", s.concurrencyCheckHandler)

	return s
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) concurrencyCheckHandler(c *fiber.Ctx) error {
	return c.JSON(ConcurrencyCheckResponse{
		Success:       true,
		Concurrency:   int(s.activeScrapes.Load()),
		MaxConcurrent: s.config.Scraper.MaxConcurrency,
	})
}
