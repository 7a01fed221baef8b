package urlutil

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_AddsSchemeWhenMissing(t *testing.T) {
	got, err := Validate("example.com/page")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if got != "http://example.com/page" {
		t.Fatalf("Validate = %q, want http://example.com/page", got)
	}
}

func TestValidate_NormalizesSchemeCase(t *testing.T) {
	got, err := Validate("HTTPS://Example.com/A")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !strings.HasPrefix(got, "https://") {
		t.Fatalf("expected lowercase https scheme, got %q", got)
	}
}

func TestValidate_RejectsUnsupportedProtocol(t *testing.T) {
	_, err := Validate("ftp://example.com/file")
	if !errors.Is(err, ErrUnsupportedProtocol) {
		t.Fatalf("expected ErrUnsupportedProtocol, got %v", err)
	}
}

func TestValidate_RejectsBlocklisted(t *testing.T) {
	for _, u := range []string{
		"https://facebook.com/somebody",
		"https://www.facebook.com/somebody",
		"https://m.facebook.com/somebody",
	} {
		if _, err := Validate(u); !errors.Is(err, ErrBlocklistedURL) {
			t.Fatalf("Validate(%q): expected ErrBlocklistedURL, got %v", u, err)
		}
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	for _, u := range []string{"", "   ", "http://", "not a url at all"} {
		if _, err := Validate(u); err == nil {
			t.Fatalf("Validate(%q): expected error, got nil", u)
		}
	}
}

func TestValidate_Idempotent(t *testing.T) {
	once, err := Validate("example.com/x?q=1")
	if err != nil {
		t.Fatalf("first Validate failed: %v", err)
	}
	twice, err := Validate(once)
	if err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}
	if once != twice {
		t.Fatalf("Validate not idempotent: %q vs %q", once, twice)
	}
}

func TestValidateForMap_StripsQueryAndTrailingSlash(t *testing.T) {
	got, err := ValidateForMap("https://example.com/docs/?page=2")
	if err != nil {
		t.Fatalf("ValidateForMap returned error: %v", err)
	}
	if got != "https://example.com/docs" {
		t.Fatalf("ValidateForMap = %q, want https://example.com/docs", got)
	}
}

func TestIsSameRegistrableDomain(t *testing.T) {
	if !IsSameRegistrableDomain("https://blog.example.com/a", "https://example.com/b") {
		t.Fatalf("expected blog.example.com and example.com to share a registrable domain")
	}
	if IsSameRegistrableDomain("https://example.com", "https://example.org") {
		t.Fatalf("example.com and example.org must not share a registrable domain")
	}
	if !IsSameRegistrableDomain("https://a.example.co.uk", "https://b.example.co.uk") {
		t.Fatalf("expected co.uk subdomains to share a registrable domain")
	}
}

func TestIsSameRegistrableDomain_BareHosts(t *testing.T) {
	if !IsSameRegistrableDomain("docs.example.com", "example.com") {
		t.Fatalf("bare hosts must compare by registrable domain")
	}
	if !IsSameRegistrableDomain("www.example.com", "example.com") {
		t.Fatalf("www variant must share the registrable domain")
	}
	if !IsSameRegistrableDomain("docs.example.com", "https://example.com/page") {
		t.Fatalf("bare host vs URL must compare by registrable domain")
	}
	if IsSameRegistrableDomain("example.com", "example.org") {
		t.Fatalf("different registrable domains must not match")
	}
}

func TestIsSubdomain_BareHosts(t *testing.T) {
	if !IsSubdomain("docs.example.com", "example.com") {
		t.Fatalf("docs.example.com must count as a subdomain of example.com")
	}
	if IsSubdomain("other.net", "example.com") {
		t.Fatalf("unrelated host must not count as a subdomain")
	}
}

func TestRemoveDuplicateURLs_PrefersHTTPSNonWWW(t *testing.T) {
	in := []string{
		"http://www.example.com/page",
		"https://example.com/page",
		"http://example.com/page",
		"https://example.com/other",
	}
	got := RemoveDuplicateURLs(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 urls, got %d (%v)", len(got), got)
	}
	if got[0] != "https://example.com/page" {
		t.Fatalf("expected https non-www variant first, got %q", got[0])
	}
}

func TestRemoveDuplicateURLs_Idempotent(t *testing.T) {
	in := []string{"https://example.com/a", "http://www.example.com/a", "https://example.com/b"}
	once := RemoveDuplicateURLs(in)
	twice := RemoveDuplicateURLs(once)
	if len(once) != len(twice) {
		t.Fatalf("not idempotent: %v vs %v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("not idempotent at %d: %q vs %q", i, once[i], twice[i])
		}
	}
}

func TestURLDepth(t *testing.T) {
	cases := map[string]int{
		"https://example.com":          0,
		"https://example.com/":         0,
		"https://example.com/a":        1,
		"https://example.com/a/b/c":    3,
		"https://example.com/a//b/":    2,
		"https://example.com/a?q=1#x2": 1,
	}
	for u, want := range cases {
		if got := URLDepth(u); got != want {
			t.Fatalf("URLDepth(%q) = %d, want %d", u, got, want)
		}
	}
}
