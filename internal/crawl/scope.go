package crawl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/temoto/robotstxt"

	"scorch/internal/model"
	"scorch/internal/robots"
	"scorch/internal/urlutil"
)

// Denial reasons recorded when a discovered link is rejected.
const (
	DenyDepth        = "DEPTH_LIMIT"
	DenyDiscovery    = "DISCOVERY_DEPTH_LIMIT"
	DenyDomain       = "OUTSIDE_DOMAIN_SCOPE"
	DenyBackward     = "BACKWARD_LINK"
	DenyIncludePaths = "NO_INCLUDE_MATCH"
	DenyExcludePaths = "EXCLUDE_MATCH"
	DenyRobots       = robots.DenialReasonRobots
	DenySeen         = "ALREADY_SEEN"
)

// Scope evaluates whether discovered URLs belong to a crawl. It is
// built once per crawl from the seed URL and the crawler options.
type Scope struct {
	opts *model.CrawlerOptions

	seedHost   string
	seedDomain string
	seedPath   string

	includeRes []*regexp.Regexp
	excludeRes []*regexp.Regexp

	seen map[string]struct{}
}

// NewScope compiles the scope predicate. Invalid include/exclude
// patterns are reported so the API can reject the crawl upfront.
func NewScope(seedURL string, opts *model.CrawlerOptions) (*Scope, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, err
	}

	s := &Scope{
		opts:       opts,
		seedHost:   strings.ToLower(u.Hostname()),
		seedDomain: urlutil.RegistrableDomain(u.Hostname()),
		seedPath:   u.EscapedPath(),
		seen:       make(map[string]struct{}),
	}
	if s.seedPath == "" {
		s.seedPath = "/"
	}

	for _, pattern := range opts.IncludePaths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		s.includeRes = append(s.includeRes, re)
	}
	for _, pattern := range opts.ExcludePaths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		s.excludeRes = append(s.excludeRes, re)
	}
	return s, nil
}

// RobotsFunc resolves parsed robots.txt rules for a URL's host. A nil
// func (or a nil return) disables robots checks for that URL.
type RobotsFunc func(pageURL string) *robotstxt.RobotsData

// Allowed applies the scope rules in order and returns the first
// denial reason, or "" when the URL should be crawled. discoveryDepth
// counts hops along the discovery chain, independent of URL path
// depth. Robots rules are resolved per target host, so subdomains and
// external hosts are checked against their own robots.txt. A passing
// URL is marked seen.
func (s *Scope) Allowed(childURL string, discoveryDepth int, getRobots RobotsFunc, userAgent string) string {
	u, err := url.Parse(childURL)
	if err != nil {
		return DenyExcludePaths
	}

	if s.opts.MaxDepth > 0 && urlutil.URLDepth(childURL) > s.opts.MaxDepth {
		return DenyDepth
	}
	if s.opts.MaxDiscoveryDepth > 0 && discoveryDepth > s.opts.MaxDiscoveryDepth {
		return DenyDiscovery
	}

	host := strings.ToLower(u.Hostname())
	if !s.domainAllowed(host) {
		return DenyDomain
	}

	if s.isBackward(host, u.EscapedPath()) &&
		!s.opts.CrawlEntireDomain && !s.opts.AllowBackwardLinks {
		return DenyBackward
	}

	matchTarget := u.EscapedPath()
	if s.opts.RegexOnFullURL {
		matchTarget = childURL
	}
	if len(s.includeRes) > 0 && !matchAny(s.includeRes, matchTarget) {
		return DenyIncludePaths
	}
	if matchAny(s.excludeRes, matchTarget) {
		return DenyExcludePaths
	}

	if getRobots != nil && !s.opts.IgnoreRobotsTxt {
		if data := getRobots(childURL); data != nil && !robots.Allowed(data, childURL, userAgent) {
			return DenyRobots
		}
	}

	key := s.dedupeKey(childURL)
	if _, dup := s.seen[key]; dup {
		return DenySeen
	}
	s.seen[key] = struct{}{}
	return ""
}

// MarkSeen records a URL without scope checks (used for the seed).
func (s *Scope) MarkSeen(rawURL string) {
	s.seen[s.dedupeKey(rawURL)] = struct{}{}
}

func (s *Scope) domainAllowed(host string) bool {
	if s.opts.AllowExternalLinks {
		return true
	}
	if host == s.seedHost {
		return true
	}
	sameRegistrable := urlutil.IsSameRegistrableDomain(host, s.seedHost)
	if s.opts.AllowSubdomains && sameRegistrable {
		return true
	}
	// www and apex variants of the seed are always in scope.
	return sameRegistrable && (strings.TrimPrefix(host, "www.") == strings.TrimPrefix(s.seedHost, "www."))
}

// isBackward reports whether the path is a strict ancestor of the seed
// path: crawling https://example.com/docs/ should not walk up to /.
func (s *Scope) isBackward(host, path string) bool {
	if host != s.seedHost {
		return false
	}
	if path == "" {
		path = "/"
	}
	if strings.HasPrefix(path, strings.TrimSuffix(s.seedPath, "/")) {
		return false
	}
	return strings.HasPrefix(strings.TrimSuffix(s.seedPath, "/")+"/", strings.TrimSuffix(path, "/")+"/")
}

func (s *Scope) dedupeKey(rawURL string) string {
	key := urlutil.Normalize(rawURL)
	if s.opts.IgnoreQueryParams || s.opts.DeduplicateSimilar {
		if u, err := url.Parse(key); err == nil {
			u.RawQuery = ""
			key = u.String()
		}
	}
	if s.opts.DeduplicateSimilar {
		// Treat trailing index pages as their directory.
		for _, suffix := range []string{"/index.html", "/index.php", "/index.htm"} {
			key = strings.TrimSuffix(key, suffix)
		}
	}
	return key
}

func matchAny(res []*regexp.Regexp, target string) bool {
	for _, re := range res {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}
