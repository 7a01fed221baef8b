package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"scorch/internal/crawler"
)

// mapHandler discovers the URLs of a site without scraping them.
func (s *Server) mapHandler(c *fiber.Ctx) error {
	var req MapRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "BAD_REQUEST_INVALID_JSON", "Bad request, malformed JSON")
	}
	if req.URL == "" {
		return badRequest(c, "BAD_REQUEST", "Missing required field 'url'")
	}

	res, err := s.mapper.Map(c.Context(), req.URL, crawler.MapOptions{
		Limit:             req.Limit,
		Search:            req.Search,
		IncludeSubdomains: req.IncludeSubdomains,
		IgnoreQueryParams: req.IgnoreQueryParams,
		SitemapOnly:       req.SitemapOnly,
		Timeout:           time.Duration(req.Timeout) * time.Millisecond,
		RespectRobots:     s.config.Robots.Respect,
		UserAgent:         s.config.Scraper.UserAgent,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	links := res.Links
	if links == nil {
		links = []string{}
	}
	return c.JSON(MapResponse{Success: true, Links: links, Warning: res.Warning})
}
