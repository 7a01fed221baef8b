package crawl

import (
	"strings"
	"testing"

	"github.com/temoto/robotstxt"

	"scorch/internal/model"
)

// staticRobots serves one rule set for every host.
func staticRobots(data *robotstxt.RobotsData) RobotsFunc {
	return func(string) *robotstxt.RobotsData { return data }
}

func newTestScope(t *testing.T, seed string, opts *model.CrawlerOptions) *Scope {
	t.Helper()
	s, err := NewScope(seed, opts)
	if err != nil {
		t.Fatalf("NewScope(%q) failed: %v", seed, err)
	}
	return s
}

func TestScope_DepthLimit(t *testing.T) {
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{MaxDepth: 2})

	if reason := s.Allowed("https://example.com/a/b", 1, nil, ""); reason != "" {
		t.Fatalf("depth 2 should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/a/b/c", 1, nil, ""); reason != DenyDepth {
		t.Fatalf("depth 3 should be denied, got %q", reason)
	}
}

func TestScope_DiscoveryDepthLimit(t *testing.T) {
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{MaxDiscoveryDepth: 2})

	if reason := s.Allowed("https://example.com/a", 2, nil, ""); reason != "" {
		t.Fatalf("discovery depth 2 should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/b", 3, nil, ""); reason != DenyDiscovery {
		t.Fatalf("discovery depth 3 should be denied, got %q", reason)
	}
}

func TestScope_DomainRules(t *testing.T) {
	cases := []struct {
		name  string
		opts  model.CrawlerOptions
		child string
		want  string
	}{
		{"same host", model.CrawlerOptions{}, "https://example.com/page", ""},
		{"www variant", model.CrawlerOptions{}, "https://www.example.com/page", ""},
		{"subdomain denied by default", model.CrawlerOptions{}, "https://docs.example.com/page", DenyDomain},
		{"subdomain with allowSubdomains", model.CrawlerOptions{AllowSubdomains: true}, "https://docs.example.com/page", ""},
		{"external denied by default", model.CrawlerOptions{}, "https://other.net/page", DenyDomain},
		{"external with allowExternalLinks", model.CrawlerOptions{AllowExternalLinks: true}, "https://other.net/page", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestScope(t, "https://example.com/", &tc.opts)
			if got := s.Allowed(tc.child, 1, nil, ""); got != tc.want {
				t.Fatalf("Allowed(%q) = %q, want %q", tc.child, got, tc.want)
			}
		})
	}
}

func TestScope_BackwardLinks(t *testing.T) {
	s := newTestScope(t, "https://example.com/docs/guide/", &model.CrawlerOptions{})

	if reason := s.Allowed("https://example.com/docs/guide/intro", 1, nil, ""); reason != "" {
		t.Fatalf("forward link should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/docs/", 1, nil, ""); reason != DenyBackward {
		t.Fatalf("ancestor path should be denied, got %q", reason)
	}
	// A sibling is neither forward nor an ancestor of the seed.
	if reason := s.Allowed("https://example.com/blog/post", 1, nil, ""); reason != "" {
		t.Fatalf("sibling path should pass, got %q", reason)
	}

	wide := newTestScope(t, "https://example.com/docs/guide/", &model.CrawlerOptions{CrawlEntireDomain: true})
	if reason := wide.Allowed("https://example.com/docs/", 1, nil, ""); reason != "" {
		t.Fatalf("crawlEntireDomain should allow ancestors, got %q", reason)
	}
}

func TestScope_IncludeExcludePaths(t *testing.T) {
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{
		IncludePaths: []string{`^/docs/`},
		ExcludePaths: []string{`\.pdf$`},
	})

	if reason := s.Allowed("https://example.com/docs/intro", 1, nil, ""); reason != "" {
		t.Fatalf("include match should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/blog/post", 1, nil, ""); reason != DenyIncludePaths {
		t.Fatalf("non-matching path should be denied, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/docs/manual.pdf", 1, nil, ""); reason != DenyExcludePaths {
		t.Fatalf("exclude match should be denied, got %q", reason)
	}
}

func TestScope_RegexOnFullURL(t *testing.T) {
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{
		IncludePaths:   []string{`^https://example\.com/docs/`},
		RegexOnFullURL: true,
	})

	if reason := s.Allowed("https://example.com/docs/intro", 1, nil, ""); reason != "" {
		t.Fatalf("full-URL include should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/blog", 1, nil, ""); reason != DenyIncludePaths {
		t.Fatalf("full-URL include miss should be denied, got %q", reason)
	}
}

func TestScope_InvalidPatternRejected(t *testing.T) {
	_, err := NewScope("https://example.com/", &model.CrawlerOptions{
		IncludePaths: []string{`(`},
	})
	if err == nil {
		t.Fatal("invalid include pattern must fail scope construction")
	}
}

func TestScope_RobotsDenial(t *testing.T) {
	data, err := robotstxt.FromString("User-agent: *\nDisallow: /private/\n")
	if err != nil {
		t.Fatalf("robots parse failed: %v", err)
	}
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{})

	if reason := s.Allowed("https://example.com/public", 1, staticRobots(data), "scorch"); reason != "" {
		t.Fatalf("allowed path should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/private/page", 1, staticRobots(data), "scorch"); reason != DenyRobots {
		t.Fatalf("disallowed path should be denied, got %q", reason)
	}

	ignoring := newTestScope(t, "https://example.com/", &model.CrawlerOptions{IgnoreRobotsTxt: true})
	if reason := ignoring.Allowed("https://example.com/private/page", 1, staticRobots(data), "scorch"); reason != "" {
		t.Fatalf("ignoreRobotsTxt should bypass robots, got %q", reason)
	}
}

func TestScope_RobotsCheckedPerHost(t *testing.T) {
	seedRules, err := robotstxt.FromString("User-agent: *\nAllow: /\n")
	if err != nil {
		t.Fatalf("robots parse failed: %v", err)
	}
	subRules, err := robotstxt.FromString("User-agent: *\nDisallow: /\n")
	if err != nil {
		t.Fatalf("robots parse failed: %v", err)
	}

	byHost := func(pageURL string) *robotstxt.RobotsData {
		if strings.Contains(pageURL, "docs.example.com") {
			return subRules
		}
		return seedRules
	}

	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{AllowSubdomains: true})
	if reason := s.Allowed("https://example.com/page", 1, byHost, "scorch"); reason != "" {
		t.Fatalf("seed host page should pass, got %q", reason)
	}
	if reason := s.Allowed("https://docs.example.com/page", 1, byHost, "scorch"); reason != DenyRobots {
		t.Fatalf("subdomain with a disallow-all robots.txt should be denied, got %q", reason)
	}
}

func TestScope_Dedupe(t *testing.T) {
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{})

	if reason := s.Allowed("https://example.com/page", 1, nil, ""); reason != "" {
		t.Fatalf("first visit should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/page", 1, nil, ""); reason != DenySeen {
		t.Fatalf("second visit should be denied, got %q", reason)
	}
}

func TestScope_DedupeQueryAndIndexVariants(t *testing.T) {
	s := newTestScope(t, "https://example.com/", &model.CrawlerOptions{
		IgnoreQueryParams:  true,
		DeduplicateSimilar: true,
	})

	if reason := s.Allowed("https://example.com/page?utm=1", 1, nil, ""); reason != "" {
		t.Fatalf("first variant should pass, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/page?utm=2", 1, nil, ""); reason != DenySeen {
		t.Fatalf("query variant should dedupe, got %q", reason)
	}
	if reason := s.Allowed("https://example.com/page/index.html", 1, nil, ""); reason != DenySeen {
		t.Fatalf("index.html variant should dedupe, got %q", reason)
	}
}
