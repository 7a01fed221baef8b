package urlutil

import "strings"

// Social networks and other sites that refuse automated scraping are
// rejected up front rather than burning engine attempts on them. The
// list can be extended at startup via AddBlocklisted.
var blockedDomains = map[string]struct{}{
	"facebook.com":  {},
	"fb.com":        {},
	"instagram.com": {},
	"twitter.com":   {},
	"x.com":         {},
	"tiktok.com":    {},
	"linkedin.com":  {},
	"snapchat.com":  {},
	"threads.net":   {},
	"wechat.com":    {},
	"whatsapp.com":  {},
	"telegram.org":  {},
	"reddit.com":    {},
	"pinterest.com": {},
	"quora.com":     {},
	"weibo.com":     {},
	"vk.com":        {},
}

// IsBlocklisted reports whether the host (or any parent domain of it)
// is on the blocklist.
func IsBlocklisted(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	host = strings.TrimPrefix(host, "www.")

	for h := host; h != ""; {
		if _, ok := blockedDomains[h]; ok {
			return true
		}
		i := strings.Index(h, ".")
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return false
}

// AddBlocklisted extends the blocklist with extra domains, typically
// from a policy override in the configuration file.
func AddBlocklisted(domains []string) {
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			blockedDomains[d] = struct{}{}
		}
	}
}
