package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scorch/internal/model"
)

// CostTracking accumulates LLM token usage for one scrape or one crawl.
// It is shared across scrapes of a crawl so the limit applies to the
// whole job.
type CostTracking struct {
	mu               sync.Mutex
	PromptTokens     int
	CompletionTokens int
	Limit            int // total tokens; 0 means unlimited
}

// Add records usage and reports whether the limit is now exceeded.
func (c *CostTracking) Add(prompt, completion int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PromptTokens += prompt
	c.CompletionTokens += completion
	return c.Limit > 0 && c.PromptTokens+c.CompletionTokens > c.Limit
}

// Totals returns the accumulated usage.
func (c *CostTracking) Totals() (prompt, completion int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PromptTokens, c.CompletionTokens
}

// Meta is the per-scrape context threaded through the orchestrator,
// the engines, and the transformer pipeline.
type Meta struct {
	ID           string
	URL          string // validated caller-supplied URL
	RewrittenURL string // post-rewrite fetch URL ("" when unchanged)
	Options      *model.ScrapeOptions
	Features     FeatureSet
	ForceEngine  string
	Logger       *slog.Logger
	Abort        *AbortManager
	Cost         *CostTracking
	PDFPrefetch  []byte // set by AddFeatureError during PDF antibot retry
	WinnerEngine string // populated after the waterfall settles
}

// FetchURL is the URL engines should actually request.
func (m *Meta) FetchURL() string {
	if m.RewrittenURL != "" {
		return m.RewrittenURL
	}
	return m.URL
}

// NewMeta assembles the scrape Meta: derived feature flags, per-host
// overrides, URL rewrites, and the external + scrape-budget abort tiers.
// The returned cancel releases the scrape-timeout context.
func NewMeta(externalCtx context.Context, url string, opts *model.ScrapeOptions, logger *slog.Logger, cost *CostTracking) (*Meta, context.CancelFunc) {
	id := newScrapeID()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("scrape_id", id, "url", url)

	features := DeriveFeatures(opts)
	rewritten := RewriteURL(url)
	if rewritten != "" {
		features.Add(FeaturePDF)
		logger.Debug("url rewritten for export", "rewritten", rewritten)
	}

	// An explicit engine in the request beats any per-host override.
	force := opts.Engine
	if ov, ok := overrideForHost(url); ok {
		if force == "" {
			force = ov.ForceEngine
		}
		features.Add(ov.AddFeatures...)
	}

	instances := []AbortInstance{{Ctx: externalCtx, Tier: TierExternal}}

	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		inst, c := NewTimeoutInstance(context.Background(), TierScrape,
			time.Duration(opts.Timeout)*time.Millisecond,
			func() error { return &ScrapeTimeoutError{} })
		instances = append(instances, inst)
		cancel = c
	}

	if cost == nil {
		cost = &CostTracking{}
	}

	return &Meta{
		ID:           id,
		URL:          url,
		RewrittenURL: rewritten,
		Options:      opts,
		Features:     features,
		ForceEngine:  force,
		Logger:       logger,
		Abort:        NewAbortManager(instances...),
		Cost:         cost,
	}, cancel
}

func newScrapeID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}
