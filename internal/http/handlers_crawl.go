package http

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"scorch/internal/jobs"
	"scorch/internal/model"
	"scorch/internal/store"
	"scorch/internal/urlutil"
)

// crawlHandler enqueues a crawl job and returns its polling URL.
func (s *Server) crawlHandler(c *fiber.Ctx) error {
	var req CrawlRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "BAD_REQUEST_INVALID_JSON", "Bad request, malformed JSON")
	}
	if req.URL == "" {
		return badRequest(c, "BAD_REQUEST", "Missing required field 'url'")
	}

	seed, err := urlutil.Validate(req.URL)
	if err != nil {
		return errorJSON(c, err)
	}

	crawlerOpts := req.crawlerOptions()
	for _, pattern := range append(append([]string{}, crawlerOpts.IncludePaths...), crawlerOpts.ExcludePaths...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return badRequest(c, "BAD_REQUEST_INVALID_REGEX",
				fmt.Sprintf("invalid path pattern %q: %v", pattern, err))
		}
	}
	if crawlerOpts.Limit <= 0 {
		crawlerOpts.Limit = s.config.Crawler.LimitDefault
	}
	if crawlerOpts.MaxDepth <= 0 {
		crawlerOpts.MaxDepth = s.config.Crawler.MaxDepthDefault
	}

	input := jobs.CrawlInput{
		URL:            seed,
		CrawlerOptions: crawlerOpts,
		Webhook:        req.Webhook,
	}
	if req.ScrapeOptions != nil {
		input.ScrapeOptions = req.ScrapeOptions.options()
	}

	retention := time.Duration(s.config.Crawler.RetentionHours) * time.Hour
	id := uuid.New()
	if _, err := s.store.CreateJob(c.Context(), id, store.KindCrawl, seed, input, retention); err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(CrawlCreateResponse{
		Success: true,
		ID:      id.String(),
		URL:     "/v1/crawl/" + id.String(),
	})
}

// crawlStatusHandler reports progress and pages documents through a
// numeric cursor in the "next" link.
func (s *Server) crawlStatusHandler(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "BAD_REQUEST", "invalid crawl id")
	}

	job, err := s.store.GetJob(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false, Code: "NOT_FOUND", Error: "crawl not found",
		})
	}
	if err != nil {
		return errorJSON(c, err)
	}

	after, _ := strconv.ParseInt(c.Query("next"), 10, 64)
	limit := c.QueryInt("limit", 100)

	docs, nextCursor, err := s.store.ListDocuments(c.Context(), id, after, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	if docs == nil {
		docs = []model.Document{}
	}

	resp := CrawlStatusResponse{
		Success:     true,
		Status:      job.Status,
		Completed:   job.Completed,
		Total:       job.Total,
		CreditsUsed: job.CreditsUsed,
		ExpiresAt:   job.ExpiresAt.UTC().Format(time.RFC3339),
		Data:        docs,
	}
	if nextCursor > 0 {
		resp.Next = fmt.Sprintf("/v1/crawl/%s?next=%d&limit=%d", id, nextCursor, limit)
	}
	return c.JSON(resp)
}

// crawlCancelHandler flips the job to cancelled and aborts it if it is
// running on this node.
func (s *Server) crawlCancelHandler(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "BAD_REQUEST", "invalid crawl id")
	}

	if _, err := s.store.GetJob(c.Context(), id); errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false, Code: "NOT_FOUND", Error: "crawl not found",
		})
	} else if err != nil {
		return errorJSON(c, err)
	}

	if _, err := s.store.CancelJob(c.Context(), id); err != nil {
		return errorJSON(c, err)
	}
	if s.cancels != nil {
		s.cancels.Cancel(id)
	}

	return c.JSON(CrawlCancelResponse{Status: "cancelled"})
}

func (s *Server) crawlErrorsHandler(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "BAD_REQUEST", "invalid crawl id")
	}

	if _, err := s.store.GetJob(c.Context(), id); errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Success: false, Code: "NOT_FOUND", Error: "crawl not found",
		})
	} else if err != nil {
		return errorJSON(c, err)
	}

	entries, blocked, err := s.store.GetCrawlErrors(c.Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	if entries == nil {
		entries = []model.CrawlErrorEntry{}
	}
	if blocked == nil {
		blocked = []string{}
	}
	return c.JSON(CrawlErrorsResponse{Errors: entries, RobotsBlocked: blocked})
}
