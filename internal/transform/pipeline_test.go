package transform

import (
	"context"
	"strings"
	"testing"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

func testMeta(t *testing.T, opts *model.ScrapeOptions) *scrape.Meta {
	t.Helper()
	meta, cancel := scrape.NewMeta(context.Background(), "https://example.com/", opts, nil, nil)
	t.Cleanup(cancel)
	return meta
}

func TestPipeline_EndToEnd(t *testing.T) {
	rawHTML := `<html lang="en"><head>
		<title>Demo</title>
		<meta name="description" content="a demo page">
		<script>tracker()</script>
	</head><body>
		<nav>menu</nav>
		<article><h1>Hello</h1><p>World of <a href="/docs">docs</a>.</p></article>
	</body></html>`

	meta := testMeta(t, &model.ScrapeOptions{
		Formats:         []string{"markdown", "html", "links"},
		OnlyMainContent: true,
	})
	p := NewPipeline(nil, nil)

	doc, err := p.Run(context.Background(), meta, &scrape.EngineResult{
		URL:        "https://example.com/",
		HTML:       rawHTML,
		StatusCode: 200,
	})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if !strings.Contains(doc.Markdown, "Hello") {
		t.Errorf("markdown = %q, want heading content", doc.Markdown)
	}
	if strings.Contains(doc.Markdown, "menu") {
		t.Errorf("nav content must not survive onlyMainContent: %q", doc.Markdown)
	}
	if strings.Contains(doc.HTML, "tracker()") {
		t.Errorf("script must be sanitized out of html")
	}
	if len(doc.Links) != 1 || doc.Links[0] != "https://example.com/docs" {
		t.Errorf("links = %v", doc.Links)
	}
	if doc.Metadata.Title != "Demo" || doc.Metadata.Description != "a demo page" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.StatusCode != 200 || doc.Metadata.SourceURL != "https://example.com/" {
		t.Errorf("response metadata lost: %+v", doc.Metadata)
	}
	// rawHtml was not requested and must be coerced away.
	if doc.RawHTML != "" {
		t.Errorf("rawHtml must be dropped when not requested")
	}
}

func TestPipeline_RemoveBase64Images(t *testing.T) {
	meta := testMeta(t, &model.ScrapeOptions{
		Formats:            []string{"markdown"},
		RemoveBase64Images: true,
	})
	p := NewPipeline(nil, nil)

	doc := model.Document{Markdown: "before ![logo](data:image/png;base64,AAAA) after"}
	out, err := removeBase64Images(context.Background(), p, meta, doc)
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	want := "before ![logo](<Base64-Image-Removed>) after"
	if out.Markdown != want {
		t.Fatalf("markdown = %q, want %q", out.Markdown, want)
	}
}

func TestPipeline_CoerceWarnsOnMissingFormat(t *testing.T) {
	meta := testMeta(t, &model.ScrapeOptions{Formats: []string{"markdown", "screenshot"}})
	p := NewPipeline(nil, nil)

	doc, err := p.Run(context.Background(), meta, &scrape.EngineResult{
		URL:        "https://example.com/",
		HTML:       "<body><p>text</p></body>",
		StatusCode: 200,
	})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if !strings.Contains(doc.Warning, "screenshot") {
		t.Fatalf("warning = %q, want mention of missing screenshot", doc.Warning)
	}
}

func TestPipeline_PDFMarkdownPassesThrough(t *testing.T) {
	meta := testMeta(t, &model.ScrapeOptions{Formats: []string{"markdown"}})
	p := NewPipeline(nil, nil)

	doc, err := p.Run(context.Background(), meta, &scrape.EngineResult{
		URL:         "https://example.com/doc.pdf",
		Markdown:    "extracted pdf text",
		StatusCode:  200,
		ContentType: "application/pdf",
		NumPages:    4,
	})
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if doc.Markdown != "extracted pdf text" {
		t.Fatalf("markdown = %q, pdf text must pass through untouched", doc.Markdown)
	}
	if doc.Metadata.NumPages != 4 {
		t.Fatalf("numPages = %d, want 4", doc.Metadata.NumPages)
	}
}

func TestToMarkdown_StripsSkipToContent(t *testing.T) {
	html := `<body><a href="#content">Skip to Content</a><p>real text</p></body>`
	md, err := ToMarkdown(html, "https://example.com/")
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if strings.Contains(md, "Skip to Content") {
		t.Fatalf("markdown = %q, skip anchor must be stripped", md)
	}
	if !strings.Contains(md, "real text") {
		t.Fatalf("markdown = %q, content lost", md)
	}
}
