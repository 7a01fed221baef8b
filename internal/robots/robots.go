package robots

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	robotstxt "github.com/temoto/robotstxt"
)

// DenialReasonRobots is recorded for links removed by a Disallow rule.
const DenialReasonRobots = "ROBOTS_TXT"

const defaultTTL = time.Hour

type cacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// Cache fetches and caches robots.txt per scheme+host. Parsing is
// tolerant: malformed bodies fail open to "allowed" with a warning, so
// a broken robots.txt never blocks a crawl outright.
type Cache struct {
	client    *http.Client
	tlsClient *http.Client
	logger    *slog.Logger
	ttl       time.Duration

	mu      sync.Mutex
	entries map[string]*cacheEntry
	// Per-host fetch locks prevent a thundering herd when many workers
	// hit the same host at once.
	fetching map[string]*sync.Mutex
}

// NewCache builds a Cache with the given fetch timeout and TTL. A
// non-positive ttl falls back to one hour.
func NewCache(timeout time.Duration, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	skipVerify := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return &Cache{
		client:    &http.Client{Timeout: timeout},
		tlsClient: skipVerify,
		logger:    logger,
		ttl:       ttl,
		entries:   make(map[string]*cacheEntry),
		fetching:  make(map[string]*sync.Mutex),
	}
}

// Parse parses a robots.txt body. Bodies that cannot be parsed at all
// (including non-UTF-8 or NUL-laden input the parser chokes on) yield a
// nil RobotsData, which every caller treats as allow-all.
func Parse(body []byte) (*robotstxt.RobotsData, error) {
	return robotstxt.FromBytes(body)
}

// Get returns parsed robots rules for the URL's scheme+host, fetching
// and caching them if needed. skipTLSVerify matches the TLS policy of
// the scrape itself. A nil return means no usable rules: allow all.
func (c *Cache) Get(ctx context.Context, pageURL string, userAgent string, skipTLSVerify bool) *robotstxt.RobotsData {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}
	key := u.Scheme + "://" + u.Host

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.data
	}
	lock, ok := c.fetching[key]
	if !ok {
		lock = &sync.Mutex{}
		c.fetching[key] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// Re-check under the host lock; another worker may have fetched.
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.data
	}
	c.mu.Unlock()

	data := c.fetch(ctx, u, userAgent, skipTLSVerify)

	c.mu.Lock()
	c.entries[key] = &cacheEntry{data: data, fetchedAt: time.Now()}
	c.mu.Unlock()

	return data
}

func (c *Cache) fetch(ctx context.Context, base *url.URL, userAgent string, skipTLSVerify bool) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	client := c.client
	if skipTLSVerify {
		client = c.tlsClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("robots.txt parse failed, treating as allow-all",
				"host", base.Host, "error", err)
		}
		return nil
	}
	return data
}

// IsAllowed evaluates the cached rules for the URL against the given
// user agent. Missing or unparsable rules allow everything.
func (c *Cache) IsAllowed(ctx context.Context, pageURL, userAgent string, skipTLSVerify bool) bool {
	data := c.Get(ctx, pageURL, userAgent, skipTLSVerify)
	return Allowed(data, pageURL, userAgent)
}

// Allowed evaluates already-parsed rules against a URL.
func Allowed(data *robotstxt.RobotsData, pageURL, userAgent string) bool {
	if data == nil {
		return true
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	group := data.FindGroup(userAgent)
	if group == nil {
		return true
	}
	return group.Test(path)
}

// FilterLinks splits links into those permitted by the parsed rules and
// a denial-reason map keyed by the denied URL. Links that do not share
// the base URL's host pass through unchecked; their robots.txt is the
// target host's concern, evaluated when that host is visited.
func FilterLinks(data *robotstxt.RobotsData, links []string, baseURL, userAgent string) (kept []string, denied map[string]string) {
	denied = make(map[string]string)
	if data == nil {
		return links, denied
	}

	var baseHost string
	if bu, err := url.Parse(baseURL); err == nil {
		baseHost = strings.ToLower(bu.Host)
	}

	kept = make([]string, 0, len(links))
	for _, link := range links {
		lu, err := url.Parse(link)
		if err != nil {
			continue
		}
		if baseHost != "" && !strings.EqualFold(lu.Host, baseHost) {
			kept = append(kept, link)
			continue
		}
		if Allowed(data, link, userAgent) {
			kept = append(kept, link)
		} else {
			denied[link] = DenialReasonRobots
		}
	}
	return kept, denied
}
