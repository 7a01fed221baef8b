package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"scorch/internal/crawl"
	"scorch/internal/metrics"
	"scorch/internal/model"
	"scorch/internal/store"
)

// CrawlInput is the payload persisted with a crawl job.
type CrawlInput struct {
	URL            string                `json:"url"`
	ScrapeOptions  *model.ScrapeOptions  `json:"scrapeOptions,omitempty"`
	CrawlerOptions *model.CrawlerOptions `json:"crawlerOptions,omitempty"`
	Webhook        *WebhookConfig        `json:"webhook,omitempty"`
}

// CrawlExecutor runs crawl jobs end to end: coordinator, persistence,
// and webhook events.
type CrawlExecutor struct {
	store       *store.Store
	coordinator *crawl.Coordinator
	webhooks    *WebhookEmitter
	logger      *slog.Logger
	costLimit   int
}

func NewCrawlExecutor(st *store.Store, coordinator *crawl.Coordinator, webhooks *WebhookEmitter, logger *slog.Logger, costLimit int) *CrawlExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlExecutor{
		store:       st,
		coordinator: coordinator,
		webhooks:    webhooks,
		logger:      logger,
		costLimit:   costLimit,
	}
}

func (e *CrawlExecutor) Execute(ctx context.Context, job store.Job) {
	logger := e.logger.With("job_id", job.ID, "url", job.URL)

	// Persistence must survive mid-crawl cancellation.
	persistCtx := context.WithoutCancel(ctx)

	var input CrawlInput
	if err := json.Unmarshal(job.Input, &input); err != nil {
		logger.Error("invalid crawl job input", "error", err)
		_ = e.store.UpdateJobStatus(persistCtx, job.ID, store.StatusFailed, "invalid job input: "+err.Error())
		return
	}
	if input.ScrapeOptions == nil {
		input.ScrapeOptions = &model.ScrapeOptions{}
	}
	if input.CrawlerOptions == nil {
		input.CrawlerOptions = &model.CrawlerOptions{}
	}

	var webhook WebhookConfig
	if input.Webhook != nil {
		webhook = *input.Webhook
	}
	jobID := job.ID.String()

	e.webhooks.Emit(webhook, EventStarted, jobID, map[string]string{"url": job.URL}, "", webhook.Metadata)

	hooks := crawl.Hooks{
		OnDocument: func(url string, doc *model.Document) {
			if err := e.store.AddDocument(persistCtx, job.ID, url, doc); err != nil {
				logger.Warn("storing document failed", "page", url, "error", err)
			}
			e.webhooks.Emit(webhook, EventPage, jobID, doc, "", webhook.Metadata)
		},
		OnError: func(entry model.CrawlErrorEntry) {
			if err := e.store.AddCrawlError(persistCtx, job.ID, entry); err != nil {
				logger.Warn("storing crawl error failed", "page", entry.URL, "error", err)
			}
		},
		OnRobotsBlocked: func(url string) {
			if err := e.store.AddRobotsBlocked(persistCtx, job.ID, url); err != nil {
				logger.Warn("storing robots denial failed", "page", url, "error", err)
			}
		},
		OnProgress: func(completed, total int) {
			_ = e.store.UpdateJobProgress(persistCtx, job.ID, completed, total, completed)
		},
	}

	sum := e.coordinator.Run(ctx, crawl.Job{
		ID:        jobID,
		SeedURL:   job.URL,
		Scrape:    input.ScrapeOptions,
		Crawler:   input.CrawlerOptions,
		CostLimit: e.costLimit,
	}, hooks)

	_ = e.store.UpdateJobProgress(persistCtx, job.ID, sum.Completed, sum.Total, sum.CreditsUsed)

	switch sum.Status {
	case crawl.StatusCompleted:
		_ = e.store.UpdateJobStatus(persistCtx, job.ID, store.StatusCompleted, "")
		e.webhooks.Emit(webhook, EventCompleted, jobID,
			map[string]int{"completed": sum.Completed, "total": sum.Total}, "", webhook.Metadata)
	case crawl.StatusCancelled:
		// DELETE already flipped the row; this is a no-op safety net.
		_ = e.store.UpdateJobStatus(persistCtx, job.ID, store.StatusCancelled, "")
	default:
		_ = e.store.UpdateJobStatus(persistCtx, job.ID, store.StatusFailed, sum.Error)
		e.webhooks.Emit(webhook, EventFailed, jobID, nil, sum.Error, webhook.Metadata)
	}

	metrics.RecordCrawl(sum.Status, sum.Completed)
	logger.Info("crawl finished", "status", sum.Status,
		"completed", sum.Completed, "total", sum.Total)
}
