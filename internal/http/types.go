package http

import (
	"strings"

	"scorch/internal/jobs"
	"scorch/internal/model"
)

// Wire types for the v1 API.

// ScrapeRequest is the body of POST /v1/scrape. Pointer fields
// distinguish "absent" from zero so defaults can apply.
type ScrapeRequest struct {
	URL                 string             `json:"url"`
	Formats             []string           `json:"formats,omitempty"`
	Headers             map[string]string  `json:"headers,omitempty"`
	IncludeTags         []string           `json:"includeTags,omitempty"`
	ExcludeTags         []string           `json:"excludeTags,omitempty"`
	OnlyMainContent     *bool              `json:"onlyMainContent,omitempty"`
	Timeout             *int               `json:"timeout,omitempty"`
	WaitFor             int                `json:"waitFor,omitempty"`
	Mobile              bool               `json:"mobile,omitempty"`
	SkipTLSVerification bool               `json:"skipTlsVerification,omitempty"`
	RemoveBase64Images  bool               `json:"removeBase64Images,omitempty"`
	FastMode            bool               `json:"fastMode,omitempty"`
	BlockAds            bool               `json:"blockAds,omitempty"`
	ParsePDF            *bool              `json:"parsePDF,omitempty"`
	Proxy               string             `json:"proxy,omitempty"`
	Engine              string             `json:"engine,omitempty"`
	Actions             []model.Action     `json:"actions,omitempty"`
	Location            *model.Location    `json:"location,omitempty"`
	JSONOptions         *model.JSONOptions `json:"jsonOptions,omitempty"`
}

// options maps the wire shape onto the internal ScrapeOptions with
// defaults applied.
func (r *ScrapeRequest) options() *model.ScrapeOptions {
	opts := &model.ScrapeOptions{
		Formats:             r.Formats,
		Headers:             r.Headers,
		IncludeTags:         r.IncludeTags,
		ExcludeTags:         r.ExcludeTags,
		OnlyMainContent:     true,
		WaitFor:             r.WaitFor,
		Mobile:              r.Mobile,
		SkipTLSVerification: r.SkipTLSVerification,
		RemoveBase64Images:  r.RemoveBase64Images,
		FastMode:            r.FastMode,
		BlockAds:            r.BlockAds,
		ParsePDF:            true,
		Proxy:               r.Proxy,
		Engine:              r.Engine,
		Actions:             r.Actions,
		Location:            r.Location,
		JSONOptions:         r.JSONOptions,
	}
	if r.Location != nil && r.Location.Country != "" {
		loc := *r.Location
		loc.Country = strings.ToUpper(loc.Country)
		opts.Location = &loc
	}
	if r.OnlyMainContent != nil {
		opts.OnlyMainContent = *r.OnlyMainContent
	}
	if r.ParsePDF != nil {
		opts.ParsePDF = *r.ParsePDF
	}
	if r.Timeout != nil && *r.Timeout > 0 {
		opts.Timeout = *r.Timeout
	}
	return opts
}

// ErrorResponse is the error envelope for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type ScrapeResponse struct {
	Success bool            `json:"success"`
	Data    *model.Document `json:"data,omitempty"`
}

// MapRequest is the body of POST /v1/map.
type MapRequest struct {
	URL               string `json:"url"`
	Search            string `json:"search,omitempty"`
	IncludeSubdomains bool   `json:"includeSubdomains,omitempty"`
	IgnoreQueryParams bool   `json:"ignoreQueryParameters,omitempty"`
	SitemapOnly       bool   `json:"sitemapOnly,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	Timeout           int    `json:"timeout,omitempty"` // ms
}

type MapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Warning string   `json:"warning,omitempty"`
}

// CrawlRequest is the body of POST /v1/crawl. Crawler options ride at
// the top level; per-page scrape options nest under scrapeOptions.
type CrawlRequest struct {
	URL                string              `json:"url"`
	IncludePaths       []string            `json:"includePaths,omitempty"`
	ExcludePaths       []string            `json:"excludePaths,omitempty"`
	MaxDepth           int                 `json:"maxDepth,omitempty"`
	MaxDiscoveryDepth  int                 `json:"maxDiscoveryDepth,omitempty"`
	Limit              int                 `json:"limit,omitempty"`
	CrawlEntireDomain  bool                `json:"crawlEntireDomain,omitempty"`
	AllowBackwardLinks bool                `json:"allowBackwardLinks,omitempty"`
	AllowExternalLinks bool                `json:"allowExternalLinks,omitempty"`
	AllowSubdomains    bool                `json:"allowSubdomains,omitempty"`
	IgnoreRobotsTxt    bool                `json:"ignoreRobotsTxt,omitempty"`
	IgnoreSitemap      bool                `json:"ignoreSitemap,omitempty"`
	DeduplicateSimilar bool                `json:"deduplicateSimilarURLs,omitempty"`
	IgnoreQueryParams  bool                `json:"ignoreQueryParameters,omitempty"`
	RegexOnFullURL     bool                `json:"regexOnFullURL,omitempty"`
	Delay              float64             `json:"delay,omitempty"`
	ScrapeOptions      *ScrapeRequest      `json:"scrapeOptions,omitempty"`
	Webhook            *jobs.WebhookConfig `json:"webhook,omitempty"`
}

func (r *CrawlRequest) crawlerOptions() *model.CrawlerOptions {
	return &model.CrawlerOptions{
		IncludePaths:       r.IncludePaths,
		ExcludePaths:       r.ExcludePaths,
		MaxDepth:           r.MaxDepth,
		MaxDiscoveryDepth:  r.MaxDiscoveryDepth,
		Limit:              r.Limit,
		CrawlEntireDomain:  r.CrawlEntireDomain,
		AllowBackwardLinks: r.AllowBackwardLinks,
		AllowExternalLinks: r.AllowExternalLinks,
		AllowSubdomains:    r.AllowSubdomains,
		IgnoreRobotsTxt:    r.IgnoreRobotsTxt,
		IgnoreSitemap:      r.IgnoreSitemap,
		DeduplicateSimilar: r.DeduplicateSimilar,
		IgnoreQueryParams:  r.IgnoreQueryParams,
		RegexOnFullURL:     r.RegexOnFullURL,
		Delay:              r.Delay,
	}
}

type CrawlCreateResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	URL     string `json:"url"`
}

type CrawlStatusResponse struct {
	Success     bool             `json:"success"`
	Status      string           `json:"status"`
	Completed   int              `json:"completed"`
	Total       int              `json:"total"`
	CreditsUsed int              `json:"creditsUsed"`
	ExpiresAt   string           `json:"expiresAt,omitempty"`
	Next        string           `json:"next,omitempty"`
	Data        []model.Document `json:"data"`
}

type CrawlCancelResponse struct {
	Status string `json:"status"`
}

type CrawlErrorsResponse struct {
	Errors        []model.CrawlErrorEntry `json:"errors"`
	RobotsBlocked []string                `json:"robotsBlocked"`
}

type ConcurrencyCheckResponse struct {
	Success       bool `json:"success"`
	Concurrency   int  `json:"concurrency"`
	MaxConcurrent int  `json:"maxConcurrency"`
}
