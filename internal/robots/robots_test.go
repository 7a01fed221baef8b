package robots

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestFilterLinks_DeniesDisallowedWithReason(t *testing.T) {
	data, err := Parse([]byte("User-agent: *\nDisallow: /disallowed"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	links := []string{"https://ex.com/allowed", "https://ex.com/disallowed"}
	kept, denied := FilterLinks(data, links, "https://ex.com", "scorch")

	if len(kept) != 1 || kept[0] != "https://ex.com/allowed" {
		t.Fatalf("kept = %v, want only the allowed link", kept)
	}
	if denied["https://ex.com/disallowed"] != DenialReasonRobots {
		t.Fatalf("denied map = %v, want ROBOTS_TXT for the disallowed link", denied)
	}
}

func TestFilterLinks_CrossHostPassesThrough(t *testing.T) {
	data, err := Parse([]byte("User-agent: *\nDisallow: /"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	kept, denied := FilterLinks(data, []string{"https://other.com/page"}, "https://ex.com", "scorch")
	if len(kept) != 1 {
		t.Fatalf("cross-host link should pass through, got kept=%v denied=%v", kept, denied)
	}
}

func TestAllowed_LongestMatchWins(t *testing.T) {
	data, err := Parse([]byte("User-agent: *\nDisallow: /dir/\nAllow: /dir/open"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if Allowed(data, "https://ex.com/dir/secret", "scorch") {
		t.Fatalf("/dir/secret should be disallowed")
	}
	if !Allowed(data, "https://ex.com/dir/open/page", "scorch") {
		t.Fatalf("/dir/open/page should be allowed by the longer Allow rule")
	}
}

func TestAllowed_NilDataAllowsAll(t *testing.T) {
	if !Allowed(nil, "https://ex.com/anything", "scorch") {
		t.Fatalf("nil rules must fail open to allowed")
	}
}

func TestParse_ToleratesBinaryGarbage(t *testing.T) {
	// Null bytes and invalid UTF-8 must not panic; a parse error is fine
	// because callers treat it as allow-all.
	body := []byte{0x00, 0xff, 0xfe, '\n', 'D', 'i', 's', 0x00}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Parse panicked on binary input: %v", r)
		}
	}()
	_, _ = Parse(body)
}

func TestCache_FetchesOncePerHost(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits++
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private"))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cache := NewCache(2*time.Second, time.Hour, logger)

	ctx := context.Background()
	if cache.IsAllowed(ctx, srv.URL+"/private/page", "scorch", false) {
		t.Fatalf("/private/page should be disallowed")
	}
	if !cache.IsAllowed(ctx, srv.URL+"/public", "scorch", false) {
		t.Fatalf("/public should be allowed")
	}
	if hits != 1 {
		t.Fatalf("expected a single robots.txt fetch, got %d", hits)
	}
}

func TestCache_404AllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cache := NewCache(2*time.Second, time.Hour, nil)
	if !cache.IsAllowed(context.Background(), srv.URL+"/anything", "scorch", false) {
		t.Fatalf("missing robots.txt must allow everything")
	}
}
