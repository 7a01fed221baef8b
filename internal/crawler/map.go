package crawler

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"

	"scorch/internal/robots"
	"scorch/internal/urlutil"
)

// MapOptions controls URL discovery for one map request.
type MapOptions struct {
	Limit             int
	Search            string
	IncludeSubdomains bool
	IgnoreQueryParams bool
	SitemapOnly       bool
	Timeout           time.Duration
	RespectRobots     bool
	UserAgent         string
}

// MapResult holds the discovered URLs in first-seen order.
type MapResult struct {
	Links   []string
	Warning string
}

const defaultMapLimit = 5000

// Mapper discovers the URLs of a site from its sitemap and root page
// without scraping every page.
type Mapper struct {
	robots *robots.Cache
	logger *slog.Logger
}

func NewMapper(robotsCache *robots.Cache, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{robots: robotsCache, logger: logger}
}

// Map validates the target URL, then collects links from /sitemap.xml
// and, unless SitemapOnly is set, from anchors on the root page.
func (m *Mapper) Map(ctx context.Context, rawURL string, opts MapOptions) (*MapResult, error) {
	target, err := urlutil.ValidateForMap(rawURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultMapLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	client := &http.Client{Timeout: opts.Timeout}

	var robotsData *robotstxt.RobotsData
	if opts.RespectRobots && m.robots != nil {
		robotsData = m.robots.Get(ctx, target, opts.UserAgent, false)
	}

	var links []string
	needle := strings.ToLower(opts.Search)

	add := func(raw, anchorText string) {
		if len(links) >= opts.Limit {
			return
		}
		u, err := base.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if !m.inScope(base.Hostname(), u.Hostname(), opts.IncludeSubdomains) {
			return
		}
		if opts.IgnoreQueryParams {
			u.RawQuery = ""
		}
		u.Fragment = ""
		final := u.String()

		if robotsData != nil && !robots.Allowed(robotsData, final, opts.UserAgent) {
			return
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(final), needle) &&
			!strings.Contains(strings.ToLower(anchorText), needle) {
			return
		}
		links = append(links, final)
	}

	for _, loc := range m.sitemapLocations(ctx, client, base, opts.UserAgent) {
		add(loc, "")
	}
	if !opts.SitemapOnly {
		if err := m.collectFromHTML(ctx, client, base, opts.UserAgent, add); err != nil {
			m.logger.Debug("root page discovery failed", "url", target, "error", err)
		}
	}

	links = urlutil.RemoveDuplicateURLs(links)
	if len(links) > opts.Limit {
		links = links[:opts.Limit]
	}

	warning := ""
	if len(links) <= 1 && base.Path != "" && base.Path != "/" {
		root := &url.URL{Scheme: base.Scheme, Host: base.Host}
		warning = "few results for this path; try mapping the base domain " + root.String()
	}
	return &MapResult{Links: links, Warning: warning}, nil
}

func (m *Mapper) inScope(baseHost, host string, includeSubdomains bool) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(baseHost, host) {
		return true
	}
	if strings.TrimPrefix(strings.ToLower(host), "www.") == strings.TrimPrefix(strings.ToLower(baseHost), "www.") {
		return true
	}
	return includeSubdomains && urlutil.IsSubdomain(host, baseHost)
}

type sitemapDoc struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// sitemapLocations reads /sitemap.xml, following index entries one
// level deep.
func (m *Mapper) sitemapLocations(ctx context.Context, client *http.Client, base *url.URL, userAgent string) []string {
	root := base.Scheme + "://" + base.Host + "/sitemap.xml"

	var out []string
	for _, loc := range m.readSitemap(ctx, client, root, userAgent) {
		if strings.HasSuffix(strings.ToLower(loc), ".xml") {
			out = append(out, m.readSitemap(ctx, client, loc, userAgent)...)
			continue
		}
		out = append(out, loc)
	}
	return out
}

func (m *Mapper) readSitemap(ctx context.Context, client *http.Client, sitemapURL, userAgent string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
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

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}
	var locs []string
	for _, e := range doc.URLs {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	for _, e := range doc.Sitemaps {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}

func (m *Mapper) collectFromHTML(ctx context.Context, client *http.Client, base *url.URL, userAgent string, add func(raw, anchorText string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return err
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			add(href, sel.Text())
		}
	})
	return nil
}
