package transform

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

func deriveLinksFromHTML(_ context.Context, _ *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	if doc.HTML == "" {
		return doc, nil
	}
	docURL := doc.Metadata.URL
	if docURL == "" {
		docURL = meta.URL
	}
	links, err := ExtractLinks(doc.HTML, docURL)
	if err != nil {
		return doc, err
	}
	doc.Links = links
	return doc, nil
}

// ExtractLinks collects anchor targets in document order. Relative
// hrefs resolve against <base href> when present (itself resolved
// against the document URL if relative), otherwise against the
// document URL. Fragment-only links are navigation noise and dropped;
// mailto links are kept verbatim.
func ExtractLinks(html, docURL string) ([]string, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(docURL)
	if err != nil {
		base = nil
	}
	if baseHref, ok := gq.Find("base[href]").First().Attr("href"); ok {
		if bu, err := url.Parse(strings.TrimSpace(baseHref)); err == nil {
			if base != nil && !bu.IsAbs() {
				bu = base.ResolveReference(bu)
			}
			base = bu
		}
	}

	seen := make(map[string]struct{})
	var links []string
	gq.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if strings.HasPrefix(href, "mailto:") {
			if _, dup := seen[href]; !dup {
				seen[href] = struct{}{}
				links = append(links, href)
			}
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		if !linkURL.IsAbs() {
			if base == nil {
				return
			}
			linkURL = base.ResolveReference(linkURL)
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}

		final := linkURL.String()
		if _, dup := seen[final]; dup {
			return
		}
		seen[final] = struct{}{}
		links = append(links, final)
	})

	return links, nil
}
