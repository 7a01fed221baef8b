package transform

import (
	"reflect"
	"testing"
)

func TestExtractLinks_ResolvesAndDedupes(t *testing.T) {
	html := `<body>
		<a href="/about">About</a>
		<a href="https://other.example/page">Other</a>
		<a href="/about">About again</a>
		<a href="#section">Fragment</a>
		<a href="mailto:team@example.com">Mail</a>
	</body>`

	links, err := ExtractLinks(html, "https://example.com/docs/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	want := []string{
		"https://example.com/about",
		"https://other.example/page",
		"mailto:team@example.com",
	}
	if !reflect.DeepEqual(links, want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
}

func TestExtractLinks_BaseHref(t *testing.T) {
	html := `<head><base href="https://cdn.example.com/app/"></head>
		<body><a href="page.html">Page</a></body>`

	links, err := ExtractLinks(html, "https://example.com/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(links) != 1 || links[0] != "https://cdn.example.com/app/page.html" {
		t.Fatalf("links = %v, want base-href resolution", links)
	}
}

func TestExtractLinks_RelativeBaseHref(t *testing.T) {
	html := `<head><base href="/nested/"></head>
		<body><a href="leaf">Leaf</a></body>`

	links, err := ExtractLinks(html, "https://example.com/top/")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(links) != 1 || links[0] != "https://example.com/nested/leaf" {
		t.Fatalf("links = %v, want relative base resolved against document URL", links)
	}
}
