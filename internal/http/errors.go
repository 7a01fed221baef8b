package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"scorch/internal/scrape"
	"scorch/internal/urlutil"
)

// statusForError maps internal error kinds onto HTTP statuses and
// stable error codes.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, urlutil.ErrBlocklistedURL):
		return fiber.StatusForbidden, "URL_BLOCKLISTED"
	case errors.Is(err, urlutil.ErrInvalidURL), errors.Is(err, urlutil.ErrUnsupportedProtocol):
		return fiber.StatusBadRequest, "BAD_REQUEST_INVALID_URL"
	}

	var (
		scrapeTimeout *scrape.ScrapeTimeoutError
		jobTimeout    *scrape.JobWaitTimeoutError
		noEngines     *scrape.NoEnginesLeftError
		dns           *scrape.DNSResolutionError
		ssl           *scrape.SSLError
		site          *scrape.SiteError
		action        *scrape.ActionError
		unsupported   *scrape.UnsupportedFileError
		refusal       *scrape.LLMRefusalError
		costLimit     *scrape.CostLimitExceededError
		zdr           *scrape.ZDRViolationError
	)
	switch {
	case errors.As(err, &scrapeTimeout), errors.As(err, &jobTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout, "SCRAPE_TIMEOUT"
	case errors.As(err, &zdr):
		return fiber.StatusBadRequest, "ZDR_VIOLATION"
	case errors.As(err, &unsupported):
		return fiber.StatusBadRequest, "UNSUPPORTED_FILE"
	case errors.As(err, &action):
		return fiber.StatusBadRequest, "ACTION_FAILED"
	case errors.As(err, &dns):
		return fiber.StatusBadGateway, "DNS_RESOLUTION_FAILED"
	case errors.As(err, &ssl):
		return fiber.StatusBadGateway, "SSL_ERROR"
	case errors.As(err, &site):
		return fiber.StatusBadGateway, "SITE_ERROR"
	case errors.As(err, &noEngines):
		return fiber.StatusInternalServerError, "ALL_ENGINES_FAILED"
	case errors.As(err, &refusal):
		return fiber.StatusInternalServerError, "LLM_REFUSAL"
	case errors.As(err, &costLimit):
		return fiber.StatusInternalServerError, "COST_LIMIT_EXCEEDED"
	}
	return fiber.StatusInternalServerError, "INTERNAL_ERROR"
}

func errorJSON(c *fiber.Ctx, err error) error {
	status, code := statusForError(err)
	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Code:    code,
		Error:   err.Error(),
	})
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success: false,
		Code:    code,
		Error:   msg,
	})
}
