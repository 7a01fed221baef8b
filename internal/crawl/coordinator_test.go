package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

// fakeScraper returns canned documents keyed by URL and records calls.
type fakeScraper struct {
	mu    sync.Mutex
	pages map[string]*model.Document
	errs  map[string]error
	calls []string
}

func (f *fakeScraper) scrape(_ context.Context, url string, _ *model.ScrapeOptions, _ *scrape.CostTracking) (*model.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if doc, ok := f.pages[url]; ok {
		return doc, nil
	}
	return &model.Document{Markdown: "page"}, nil
}

func pageDoc(links ...string) *model.Document {
	return &model.Document{Markdown: "page", Links: links}
}

func testCoordinator(f *fakeScraper) *Coordinator {
	return NewCoordinator(f.scrape, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), "scorch-test", 2)
}

func testJob(seed string, crawler *model.CrawlerOptions) Job {
	if crawler == nil {
		crawler = &model.CrawlerOptions{}
	}
	crawler.IgnoreSitemap = true
	return Job{
		ID:      "crawl-test",
		SeedURL: seed,
		Scrape:  &model.ScrapeOptions{Formats: []string{"markdown", "links"}},
		Crawler: crawler,
	}
}

func TestCoordinator_FollowsLinksToCompletion(t *testing.T) {
	f := &fakeScraper{pages: map[string]*model.Document{
		"https://example.com":        pageDoc("https://example.com/a", "https://example.com/b"),
		"https://example.com/a":      pageDoc("https://example.com/a/deep"),
		"https://example.com/b":      pageDoc(),
		"https://example.com/a/deep": pageDoc(),
	}}

	var docs []string
	sum := testCoordinator(f).Run(context.Background(), testJob("https://example.com", nil), Hooks{
		OnDocument: func(url string, _ *model.Document) { docs = append(docs, url) },
	})

	if sum.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", sum.Status)
	}
	if sum.Completed != 4 || len(docs) != 4 {
		t.Fatalf("completed = %d (docs %v), want 4", sum.Completed, docs)
	}
	if sum.CreditsUsed != 4 {
		t.Fatalf("creditsUsed = %d, want 4", sum.CreditsUsed)
	}
}

func TestCoordinator_StopsAtLimit(t *testing.T) {
	pages := map[string]*model.Document{}
	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("https://example.com/p%d", i))
	}
	pages["https://example.com"] = pageDoc(links...)
	f := &fakeScraper{pages: pages}

	sum := testCoordinator(f).Run(context.Background(),
		testJob("https://example.com", &model.CrawlerOptions{Limit: 3}), Hooks{})

	if sum.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", sum.Status)
	}
	if sum.Completed != 3 {
		t.Fatalf("completed = %d, want limit of 3", sum.Completed)
	}
}

func TestCoordinator_RecordsPageErrors(t *testing.T) {
	f := &fakeScraper{
		pages: map[string]*model.Document{
			"https://example.com": pageDoc("https://example.com/broken", "https://example.com/ok"),
		},
		errs: map[string]error{
			"https://example.com/broken": errors.New("engine gave up"),
		},
	}

	var errs []model.CrawlErrorEntry
	sum := testCoordinator(f).Run(context.Background(), testJob("https://example.com", nil), Hooks{
		OnError: func(e model.CrawlErrorEntry) { errs = append(errs, e) },
	})

	if sum.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed despite page error", sum.Status)
	}
	if sum.Completed != 2 {
		t.Fatalf("completed = %d, want 2 successful pages", sum.Completed)
	}
	if len(errs) != 1 || errs[0].URL != "https://example.com/broken" {
		t.Fatalf("errors = %+v, want one entry for the broken URL", errs)
	}
	if errs[0].ID == "" || errs[0].Timestamp == "" {
		t.Fatalf("error entry missing id/timestamp: %+v", errs[0])
	}
}

func TestCoordinator_CancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeScraper{pages: map[string]*model.Document{
		"https://example.com": pageDoc("https://example.com/a", "https://example.com/b"),
	}}

	sum := testCoordinator(f).Run(ctx, testJob("https://example.com", nil), Hooks{
		OnDocument: func(string, *model.Document) { cancel() },
	})

	if sum.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled", sum.Status)
	}
}

func TestCoordinator_RejectsInvalidSeed(t *testing.T) {
	f := &fakeScraper{}
	sum := testCoordinator(f).Run(context.Background(), testJob("not a url", nil), Hooks{})
	if sum.Status != StatusFailed || sum.Error == "" {
		t.Fatalf("summary = %+v, want failed with error", sum)
	}
	if len(f.calls) != 0 {
		t.Fatalf("no scrapes should run for an invalid seed, got %v", f.calls)
	}
}

func TestCoordinator_RejectsSeedBeyondMaxDepth(t *testing.T) {
	f := &fakeScraper{}
	sum := testCoordinator(f).Run(context.Background(),
		testJob("https://example.com/a/b/c", &model.CrawlerOptions{MaxDepth: 2}), Hooks{})
	if sum.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", sum.Status)
	}
}

func TestCoordinator_ScopeFiltersDiscoveredLinks(t *testing.T) {
	f := &fakeScraper{pages: map[string]*model.Document{
		"https://example.com": pageDoc(
			"https://example.com/keep",
			"https://other.net/drop",
		),
		"https://example.com/keep": pageDoc(),
	}}

	sum := testCoordinator(f).Run(context.Background(), testJob("https://example.com", nil), Hooks{})

	if sum.Completed != 2 {
		t.Fatalf("completed = %d, want 2 (external link filtered)", sum.Completed)
	}
	for _, call := range f.calls {
		if call == "https://other.net/drop" {
			t.Fatal("external link must not be scraped")
		}
	}
}
