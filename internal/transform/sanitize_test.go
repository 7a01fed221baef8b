package transform

import (
	"strings"
	"testing"

	"scorch/internal/model"
)

func TestSanitizeHTML_IncludeTagsBuildsNewRoot(t *testing.T) {
	html := `<html><head><title>t</title></head><body>
		<header>chrome</header>
		<article id="a">first</article>
		<div class="x">second</div>
	</body></html>`

	out, err := SanitizeHTML(html, &model.ScrapeOptions{IncludeTags: []string{"article", ".x"}})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("matched subtrees missing: %q", out)
	}
	if strings.Contains(out, "chrome") {
		t.Fatalf("unmatched content must be dropped: %q", out)
	}
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Fatalf("selector order must be preserved: %q", out)
	}
}

func TestSanitizeHTML_StripsNonContentElements(t *testing.T) {
	html := `<html><head><meta charset="utf-8"></head><body>
		<script>evil()</script><style>.x{}</style><noscript>enable js</noscript>
		<p>keep me</p>
	</body></html>`

	out, err := SanitizeHTML(html, &model.ScrapeOptions{})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	for _, gone := range []string{"evil()", ".x{}", "enable js", "charset"} {
		if strings.Contains(out, gone) {
			t.Fatalf("%q must be stripped, got %q", gone, out)
		}
	}
	if !strings.Contains(out, "keep me") {
		t.Fatalf("content lost: %q", out)
	}
}

func TestSanitizeHTML_ExcludeWildcardPattern(t *testing.T) {
	html := `<body>
		<div class="ad-banner">buy stuff</div>
		<div class="content">real text</div>
	</body>`

	out, err := SanitizeHTML(html, &model.ScrapeOptions{ExcludeTags: []string{"*ad-banner*"}})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if strings.Contains(out, "buy stuff") {
		t.Fatalf("wildcard exclude must remove matching class: %q", out)
	}
	if !strings.Contains(out, "real text") {
		t.Fatalf("content lost: %q", out)
	}
}

func TestSanitizeHTML_OnlyMainContent(t *testing.T) {
	html := `<body>
		<nav>menu</nav>
		<header>site chrome</header>
		<article>the story</article>
		<footer>legal</footer>
	</body>`

	out, err := SanitizeHTML(html, &model.ScrapeOptions{OnlyMainContent: true})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	for _, gone := range []string{"menu", "site chrome", "legal"} {
		if strings.Contains(out, gone) {
			t.Fatalf("%q must be removed with onlyMainContent: %q", gone, out)
		}
	}
	if !strings.Contains(out, "the story") {
		t.Fatalf("main content lost: %q", out)
	}
}

func TestSanitizeHTML_InvalidSelectorIgnored(t *testing.T) {
	html := `<body><p class="keep">text</p></body>`

	out, err := SanitizeHTML(html, &model.ScrapeOptions{ExcludeTags: []string{"p[", ".keep"}})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if strings.Contains(out, "text") {
		t.Fatalf("valid selector after an invalid one must still apply: %q", out)
	}

	out, err = SanitizeHTML(html, &model.ScrapeOptions{IncludeTags: []string{"p[", "p"}})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if !strings.Contains(out, "text") {
		t.Fatalf("valid include selector must still match: %q", out)
	}
}

func TestSanitizeHTML_ForceIncludeKeepsMainSubtree(t *testing.T) {
	html := `<body>
		<header><div id="main">actually the app</div></header>
	</body>`

	out, err := SanitizeHTML(html, &model.ScrapeOptions{OnlyMainContent: true})
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if !strings.Contains(out, "actually the app") {
		t.Fatalf("subtree containing #main must survive the denylist: %q", out)
	}
}
