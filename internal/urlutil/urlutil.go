package urlutil

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrInvalidURL is returned for strings that cannot be parsed into an
	// absolute URL with a plausible host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedProtocol is returned for schemes other than http/https.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrBlocklistedURL is returned for hosts on the blocklist.
	ErrBlocklistedURL = errors.New("URL is blocklisted")
)

var (
	schemeRe = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
	// Host must end in a dot-separated alpha TLD of at least two characters,
	// or be a punycode label. Bare IPs are accepted separately.
	tldRe  = regexp.MustCompile(`\.[a-zA-Z]{2,}$|\.xn--[a-zA-Z0-9]+$`)
	ipv4Re = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// Validate normalizes and validates a caller-supplied URL string. A
// missing scheme defaults to http. The returned URL always has a
// lowercase http or https scheme and a host with a recognizable TLD, an
// IDN form, or an IP address, and is not on the blocklist.
//
// Validate is idempotent: Validate(Validate(u)) == Validate(u).
func Validate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	if !schemeRe.MatchString(raw) {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrUnsupportedProtocol
	}
	u.Scheme = scheme

	host := u.Hostname()
	if host == "" {
		return "", ErrInvalidURL
	}

	if !validHost(host) {
		return "", ErrInvalidURL
	}

	if IsBlocklisted(host) {
		return "", ErrBlocklistedURL
	}

	return u.String(), nil
}

// ValidateForMap applies Validate and additionally strips the query
// string and any trailing slash, matching the map endpoint's looser
// notion of URL identity.
func ValidateForMap(raw string) (string, error) {
	s, err := Validate(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", ErrInvalidURL
	}
	u.RawQuery = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func validHost(host string) bool {
	if host == "localhost" || ipv4Re.MatchString(host) {
		return true
	}
	if strings.Contains(host, ":") {
		// IPv6 literal
		return true
	}
	if tldRe.MatchString(host) {
		return true
	}
	// Non-ASCII hosts are accepted if they survive an IDNA round trip.
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != host {
		return tldRe.MatchString(ascii)
	}
	return false
}

// RegistrableDomain returns the eTLD+1 for a host, lowercased. Hosts
// without a public suffix (IPs, localhost) are returned unchanged.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// hostOf extracts the lowercased hostname from a full URL or a bare
// host like "docs.example.com". Bare hosts don't parse into a Host
// with url.Parse, so they get a scheme prepended first.
func hostOf(s string) string {
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	if u, err := url.Parse("http://" + s); err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// IsSameRegistrableDomain reports whether two URLs or bare hosts share
// an eTLD+1.
func IsSameRegistrableDomain(a, b string) bool {
	da := RegistrableDomain(hostOf(a))
	db := RegistrableDomain(hostOf(b))
	return da != "" && da == db
}

// IsSubdomain reports whether the host of child is a subdomain of (or
// equal to) the host of parent, by registrable domain. Both arguments
// may be URLs or bare hosts.
func IsSubdomain(child, parent string) bool {
	return IsSameRegistrableDomain(child, parent)
}

// Normalize produces the canonical form used for dedup: lowercase
// scheme/host, no fragment, no trailing slash on the path.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// dedupKey collapses http/https and www/non-www variants to one key.
func dedupKey(raw string) string {
	u, err := url.Parse(Normalize(raw))
	if err != nil {
		return raw
	}
	u.Scheme = "http"
	u.Host = strings.TrimPrefix(u.Host, "www.")
	return u.String()
}

// RemoveDuplicateURLs collapses http/https and www variants, preferring
// the https and non-www form of each group. First-seen order of groups
// is preserved, and the function is idempotent.
func RemoveDuplicateURLs(urls []string) []string {
	type candidate struct {
		url   string
		score int
		order int
	}

	best := make(map[string]candidate, len(urls))
	orderKeys := make([]string, 0, len(urls))

	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		key := dedupKey(raw)

		score := 0
		if strings.EqualFold(u.Scheme, "https") {
			score += 2
		}
		if !strings.HasPrefix(strings.ToLower(u.Hostname()), "www.") {
			score++
		}

		cur, seen := best[key]
		if !seen {
			best[key] = candidate{url: raw, score: score, order: i}
			orderKeys = append(orderKeys, key)
			continue
		}
		if score > cur.score {
			cur.url = raw
			cur.score = score
			best[key] = cur
		}
	}

	out := make([]string, 0, len(orderKeys))
	for _, key := range orderKeys {
		out = append(out, best[key].url)
	}
	return out
}

// URLDepth counts the non-empty path segments of a URL. The seed depth
// check and the crawl scope predicate both count depth this way.
func URLDepth(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	depth := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}
