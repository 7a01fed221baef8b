package http

import (
	"github.com/gofiber/fiber/v2"

	"scorch/internal/urlutil"
)

// scrapeHandler runs a synchronous scrape and returns the document.
func (s *Server) scrapeHandler(c *fiber.Ctx) error {
	var req ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "BAD_REQUEST_INVALID_JSON", "Bad request, malformed JSON")
	}
	if req.URL == "" {
		return badRequest(c, "BAD_REQUEST", "Missing required field 'url'")
	}

	validated, err := urlutil.Validate(req.URL)
	if err != nil {
		return errorJSON(c, err)
	}

	s.activeScrapes.Add(1)
	defer s.activeScrapes.Add(-1)

	doc, err := s.scraper.Scrape(c.Context(), validated, req.options(), nil)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(ScrapeResponse{Success: true, Data: doc})
}
