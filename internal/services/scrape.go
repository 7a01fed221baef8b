// Package services wires the scrape orchestrator, transformer
// pipeline, and engine registry into callable units for the HTTP
// layer and the crawl coordinator.
package services

import (
	"context"
	"log/slog"
	"time"

	"scorch/internal/metrics"
	"scorch/internal/model"
	"scorch/internal/scrape"
	"scorch/internal/transform"
)

// ScrapeService runs single-page scrapes through the engine waterfall.
type ScrapeService struct {
	orchestrator *scrape.Orchestrator
	logger       *slog.Logger
	defaultMs    int
	costLimit    int
}

func NewScrapeService(registry *scrape.Registry, pipeline *transform.Pipeline, index scrape.IndexWriter, logger *slog.Logger, defaultTimeoutMs, costLimit int) *ScrapeService {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTimeoutMs <= 0 {
		defaultTimeoutMs = 30000
	}
	return &ScrapeService{
		orchestrator: scrape.NewOrchestrator(registry, pipeline.Transform, index),
		logger:       logger,
		defaultMs:    defaultTimeoutMs,
		costLimit:    costLimit,
	}
}

// Scrape runs one page through the waterfall. A nil cost tracker gets
// a fresh one bounded by the configured limit.
func (s *ScrapeService) Scrape(ctx context.Context, url string, opts *model.ScrapeOptions, cost *scrape.CostTracking) (*model.Document, error) {
	if opts == nil {
		opts = &model.ScrapeOptions{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.defaultMs
	}
	if cost == nil {
		cost = &scrape.CostTracking{Limit: s.costLimit}
	}

	meta, cancel := scrape.NewMeta(ctx, url, opts, s.logger, cost)
	defer cancel()

	start := time.Now()
	doc, err := s.orchestrator.Scrape(ctx, meta)
	if err != nil {
		s.logger.Warn("scrape failed", "url", url, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	metrics.RecordEngineWin(meta.WinnerEngine)
	s.logger.Info("scrape finished", "url", url, "engine", meta.WinnerEngine,
		"elapsed_ms", time.Since(start).Milliseconds())
	return doc, nil
}
