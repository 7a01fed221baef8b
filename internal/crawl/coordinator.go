package crawl

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"scorch/internal/model"
	"scorch/internal/robots"
	"scorch/internal/scrape"
	"scorch/internal/urlutil"
)

// Terminal crawl states.
const (
	StatusScraping  = "scraping"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ScrapeFunc runs one page scrape. The coordinator shares a single
// cost tracker across all pages of a crawl.
type ScrapeFunc func(ctx context.Context, url string, opts *model.ScrapeOptions, cost *scrape.CostTracking) (*model.Document, error)

// Job is the resolved input for one crawl.
type Job struct {
	ID        string
	SeedURL   string
	Scrape    *model.ScrapeOptions
	Crawler   *model.CrawlerOptions
	CostLimit int
}

// Hooks stream crawl progress to the caller. All callbacks run on the
// coordinator goroutine; nil hooks are skipped.
type Hooks struct {
	OnDocument      func(url string, doc *model.Document)
	OnError         func(entry model.CrawlErrorEntry)
	OnRobotsBlocked func(url string)
	OnProgress      func(completed, total int)
}

// Summary is the terminal outcome of a crawl.
type Summary struct {
	Status      string
	Completed   int
	Total       int
	CreditsUsed int
	Error       string
}

// Coordinator turns one seed URL into a bounded breadth-first crawl:
// robots preload, optional sitemap seeding, a depth-ordered frontier,
// and a worker pool with per-host pacing.
type Coordinator struct {
	scrape      ScrapeFunc
	robots      *robots.Cache
	client      *http.Client
	logger      *slog.Logger
	userAgent   string
	concurrency int
}

func NewCoordinator(scrapeFn ScrapeFunc, robotsCache *robots.Cache, logger *slog.Logger, userAgent string, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = "scorch"
	}
	return &Coordinator{
		scrape:      scrapeFn,
		robots:      robotsCache,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		userAgent:   userAgent,
		concurrency: concurrency,
	}
}

type pageResult struct {
	item *frontierItem
	doc  *model.Document
	err  error
}

// Run executes the crawl until the frontier drains, the limit is hit,
// or ctx is cancelled. Cancellation always wins over completion.
func (c *Coordinator) Run(ctx context.Context, job Job, hooks Hooks) Summary {
	logger := c.logger.With("crawl_id", job.ID, "seed", job.SeedURL)

	seed, err := urlutil.Validate(job.SeedURL)
	if err != nil {
		return Summary{Status: StatusFailed, Error: err.Error()}
	}
	if job.Crawler.MaxDepth > 0 && urlutil.URLDepth(seed) > job.Crawler.MaxDepth {
		return Summary{Status: StatusFailed, Error: "seed URL is deeper than maxDepth"}
	}

	// getRobots resolves rules per target host so subdomains and
	// external hosts are checked against their own robots.txt.
	var getRobots RobotsFunc
	if !job.Crawler.IgnoreRobotsTxt && c.robots != nil {
		getRobots = func(pageURL string) *robotstxt.RobotsData {
			return c.robots.Get(ctx, pageURL, c.userAgent, job.Scrape.SkipTLSVerification)
		}
		if data := getRobots(seed); data != nil && !robots.Allowed(data, seed, c.userAgent) {
			return Summary{Status: StatusFailed, Error: "seed URL is disallowed by robots.txt"}
		}
	}

	scope, err := NewScope(seed, job.Crawler)
	if err != nil {
		return Summary{Status: StatusFailed, Error: fmt.Sprintf("invalid crawl scope: %v", err)}
	}
	scope.MarkSeen(seed)

	frontier := NewFrontier()
	frontier.Push(seed, 0, 0)
	total := 1

	if !job.Crawler.IgnoreSitemap {
		for _, loc := range c.sitemapURLs(ctx, seed) {
			if reason := scope.Allowed(loc, 1, getRobots, c.userAgent); reason == "" {
				frontier.Push(loc, urlutil.URLDepth(loc), 1)
				total++
			}
		}
		logger.Debug("frontier seeded", "urls", frontier.Len())
	}

	limit := job.Crawler.Limit
	cost := &scrape.CostTracking{Limit: job.CostLimit}

	limiters := make(map[string]*rate.Limiter)
	var limitersMu sync.Mutex
	hostLimiter := func(rawURL string) *rate.Limiter {
		if job.Crawler.Delay <= 0 {
			return nil
		}
		host := ""
		if u, err := url.Parse(rawURL); err == nil {
			host = u.Hostname()
		}
		limitersMu.Lock()
		defer limitersMu.Unlock()
		lim, ok := limiters[host]
		if !ok {
			lim = rate.NewLimiter(rate.Every(time.Duration(job.Crawler.Delay*float64(time.Second))), 1)
			limiters[host] = lim
		}
		return lim
	}

	results := make(chan pageResult)
	inFlight := 0
	completed := 0
	credits := 0
	cancelled := false

	launch := func(item *frontierItem) {
		inFlight++
		go func() {
			if lim := hostLimiter(item.URL); lim != nil {
				if err := lim.Wait(ctx); err != nil {
					results <- pageResult{item: item, err: err}
					return
				}
			}
			doc, err := c.scrape(ctx, item.URL, job.Scrape, cost)
			results <- pageResult{item: item, doc: doc, err: err}
		}()
	}

	for {
		if ctx.Err() != nil {
			cancelled = true
		}
		if !cancelled {
			for inFlight < c.concurrency && frontier.Len() > 0 &&
				(limit <= 0 || completed+inFlight < limit) {
				item, _ := frontier.Pop()
				launch(item)
			}
		}
		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--

		if cancelled {
			continue
		}
		if res.err != nil {
			if ctx.Err() != nil {
				cancelled = true
				continue
			}
			logger.Debug("page scrape failed", "url", res.item.URL, "error", res.err)
			if hooks.OnError != nil {
				hooks.OnError(model.CrawlErrorEntry{
					ID:        uuid.NewString(),
					URL:       res.item.URL,
					Error:     res.err.Error(),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
			}
			continue
		}

		completed++
		credits++
		if hooks.OnDocument != nil {
			hooks.OnDocument(res.item.URL, res.doc)
		}

		if limit <= 0 || completed < limit {
			for _, link := range res.doc.Links {
				reason := scope.Allowed(link, res.item.DiscoveryDepth+1, getRobots, c.userAgent)
				switch reason {
				case "":
					frontier.Push(link, urlutil.URLDepth(link), res.item.DiscoveryDepth+1)
					total++
				case DenyRobots:
					if hooks.OnRobotsBlocked != nil {
						hooks.OnRobotsBlocked(link)
					}
				}
			}
		}
		if hooks.OnProgress != nil {
			hooks.OnProgress(completed, total)
		}
	}

	if cancelled || ctx.Err() != nil {
		return Summary{Status: StatusCancelled, Completed: completed, Total: total, CreditsUsed: credits}
	}
	return Summary{Status: StatusCompleted, Completed: completed, Total: total, CreditsUsed: credits}
}

// sitemap shapes cover both urlset and sitemapindex documents.
type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// sitemapURLs fetches /sitemap.xml for the seed's host and returns the
// listed locations. Index files are followed one level deep.
func (c *Coordinator) sitemapURLs(ctx context.Context, seed string) []string {
	u, err := url.Parse(seed)
	if err != nil {
		return nil
	}
	root := u.Scheme + "://" + u.Host + "/sitemap.xml"

	locs := c.fetchSitemap(ctx, root)
	var out []string
	for _, loc := range locs {
		if strings.HasSuffix(strings.ToLower(loc), ".xml") {
			out = append(out, c.fetchSitemap(ctx, loc)...)
			continue
		}
		out = append(out, loc)
	}
	return out
}

func (c *Coordinator) fetchSitemap(ctx context.Context, sitemapURL string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil
	}

	var parsed sitemapURLSet
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil
	}

	var locs []string
	for _, entry := range parsed.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	for _, entry := range parsed.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}
