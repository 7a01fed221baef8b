package transform

import (
	"reflect"
	"testing"
)

func TestExtractMetadata_StandardFields(t *testing.T) {
	html := `<html lang="en"><head>
		<title>Example Page</title>
		<meta name="description" content="first part">
		<meta name="description" content="second part">
		<meta name="robots" content="noindex">
		<meta property="og:title" content="OG Example">
		<meta property="og:locale:alternate" content="fr_FR">
		<meta property="og:locale:alternate" content="de_DE">
		<meta property="article:published_time" content="2024-01-02">
		<link rel="icon" href="/favicon.ico">
	</head><body></body></html>`

	md, err := ExtractMetadata(html, "https://example.com/post")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if md.Title != "Example Page" {
		t.Errorf("title = %q", md.Title)
	}
	if md.Language != "en" {
		t.Errorf("language = %q", md.Language)
	}
	if md.Description != "first part, second part" {
		t.Errorf("description = %q, want comma-joined repeats", md.Description)
	}
	if md.Robots != "noindex" {
		t.Errorf("robots = %q", md.Robots)
	}
	if md.OgTitle != "OG Example" {
		t.Errorf("ogTitle = %q", md.OgTitle)
	}
	if !reflect.DeepEqual(md.OgLocaleAlternate, []string{"fr_FR", "de_DE"}) {
		t.Errorf("ogLocaleAlternate = %v", md.OgLocaleAlternate)
	}
	if md.PublishedTime != "2024-01-02" {
		t.Errorf("publishedTime = %q", md.PublishedTime)
	}
	if md.Favicon != "https://example.com/favicon.ico" {
		t.Errorf("favicon = %q, want absolute URL", md.Favicon)
	}
}

func TestExtractMetadata_KeywordsSingleVsRepeated(t *testing.T) {
	single := `<head><meta name="keywords" content="go, scraping"></head>`
	md, err := ExtractMetadata(single, "https://example.com/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if kw, ok := md.Keywords.(string); !ok || kw != "go, scraping" {
		t.Fatalf("single keywords = %v, want plain string", md.Keywords)
	}

	repeated := `<head>
		<meta name="keywords" content="go">
		<meta name="keywords" content="scraping">
	</head>`
	md, err = ExtractMetadata(repeated, "https://example.com/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if kw, ok := md.Keywords.([]string); !ok || len(kw) != 2 {
		t.Fatalf("repeated keywords = %v, want array", md.Keywords)
	}
}

func TestExtractMetadata_UnknownKeysCollectInAdditional(t *testing.T) {
	html := `<head>
		<meta name="theme-color" content="#fff">
		<meta name="custom-tag" content="one">
		<meta name="custom-tag" content="two">
	</head>`

	md, err := ExtractMetadata(html, "https://example.com/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if v, ok := md.Additional["theme-color"].(string); !ok || v != "#fff" {
		t.Fatalf("single unknown = %v, want string", md.Additional["theme-color"])
	}
	if v, ok := md.Additional["custom-tag"].([]string); !ok || !reflect.DeepEqual(v, []string{"one", "two"}) {
		t.Fatalf("repeated unknown = %v, want array of both", md.Additional["custom-tag"])
	}
}
