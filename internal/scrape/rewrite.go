package scrape

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	googleDocsRe   = regexp.MustCompile(`^https?://docs\.google\.com/document/d/([^/]+)`)
	googleSlidesRe = regexp.MustCompile(`^https?://docs\.google\.com/presentation/d/([^/]+)`)
)

// RewriteURL maps share URLs to direct-download equivalents that the
// PDF engine can process. Returns "" when no rewrite applies.
func RewriteURL(raw string) string {
	if m := googleDocsRe.FindStringSubmatch(raw); m != nil {
		return "https://docs.google.com/document/d/" + m[1] + "/export?format=pdf"
	}
	if m := googleSlidesRe.FindStringSubmatch(raw); m != nil {
		return "https://docs.google.com/presentation/d/" + m[1] + "/export/pdf"
	}
	return ""
}

// hostOverride tunes engine selection for hosts with known quirks.
type hostOverride struct {
	ForceEngine string
	AddFeatures []Feature
}

// Hosts that consistently defeat the plain fetch engine go straight to
// a browser, saving a wasted waterfall step.
var hostOverrides = map[string]hostOverride{
	"notion.site":    {ForceEngine: "browser"},
	"medium.com":     {AddFeatures: []Feature{FeatureStealthProxy}},
	"cloudflare.com": {ForceEngine: "browser"},
	"crunchbase.com": {ForceEngine: "browser-stealth"},
	"glassdoor.com":  {ForceEngine: "browser-stealth"},
}

func overrideForHost(raw string) (hostOverride, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return hostOverride{}, false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	for h := host; h != ""; {
		if ov, ok := hostOverrides[h]; ok {
			return ov, true
		}
		i := strings.Index(h, ".")
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return hostOverride{}, false
}
