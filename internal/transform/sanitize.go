package transform

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

// onlyMainContent removes chrome around the page body. A subtree is
// kept regardless when it contains a force-include selector.
var mainContentDenylist = []string{
	"header", "footer", "nav", "aside",
	".header", ".top", ".navbar", "#header",
	".footer", ".bottom", "#footer",
	".sidebar", ".side", ".aside", "#sidebar",
	".modal", ".popup", "#modal", ".overlay",
	".ad", ".ads", ".advert", "#ad",
	".lang-selector", ".language", "#language-selector",
	".social", ".social-media", ".social-links", "#social",
	".menu", ".navigation", "#nav",
	".breadcrumbs", "#breadcrumbs",
	".share", "#share",
	".cookie", ".cookies", "#cookie", ".cookie-banner", "#cookie-banner",
}

var forceIncludeSelectors = []string{"#main"}

func deriveHTMLFromRawHTML(_ context.Context, _ *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	if doc.RawHTML == "" {
		return doc, nil
	}
	sanitized, err := SanitizeHTML(doc.RawHTML, meta.Options)
	if err != nil {
		return doc, err
	}
	doc.HTML = sanitized
	return doc, nil
}

// SanitizeHTML applies the include/exclude/main-content rules. With
// includeTags set, the output is a fresh root holding only the matched
// subtrees in selector order; otherwise the full document minus
// non-content elements.
func SanitizeHTML(rawHTML string, opts *model.ScrapeOptions) (string, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	if len(opts.IncludeTags) > 0 {
		var b strings.Builder
		b.WriteString("<div>")
		for _, selector := range opts.IncludeTags {
			if !validSelector(selector) {
				continue
			}
			gq.Find(selector).Each(func(_ int, sel *goquery.Selection) {
				if html, err := goquery.OuterHtml(sel); err == nil {
					b.WriteString(html)
				}
			})
		}
		b.WriteString("</div>")
		return b.String(), nil
	}

	gq.Find("script, style, noscript, meta, head").Remove()

	for _, pattern := range opts.ExcludeTags {
		applyExcludePattern(gq, pattern)
	}

	if opts.OnlyMainContent {
		for _, selector := range mainContentDenylist {
			gq.Find(selector).Each(func(_ int, sel *goquery.Selection) {
				if containsForceInclude(sel) {
					return
				}
				sel.Remove()
			})
		}
	}

	if body := gq.Find("body"); body.Length() > 0 {
		if html, err := body.Html(); err == nil {
			return html, nil
		}
	}
	return gq.Html()
}

// applyExcludePattern removes either a plain CSS selector or a
// *substr* wildcard matching tag names, attribute values, or classes.
func applyExcludePattern(gq *goquery.Document, pattern string) {
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 2 {
		substr := strings.ToLower(pattern[1 : len(pattern)-1])
		gq.Find("*").Each(func(_ int, sel *goquery.Selection) {
			if matchesSubstr(sel, substr) {
				sel.Remove()
			}
		})
		return
	}
	if !validSelector(pattern) {
		return
	}
	gq.Find(pattern).Remove()
}

// validSelector guards goquery.Find, which panics on selectors that
// cascadia cannot parse. Caller-provided selectors are untrusted.
func validSelector(selector string) bool {
	_, err := cascadia.Parse(selector)
	return err == nil
}

func matchesSubstr(sel *goquery.Selection, substr string) bool {
	node := sel.Get(0)
	if node == nil {
		return false
	}
	if strings.Contains(strings.ToLower(node.Data), substr) {
		return true
	}
	for _, attr := range node.Attr {
		if strings.Contains(strings.ToLower(attr.Key), substr) ||
			strings.Contains(strings.ToLower(attr.Val), substr) {
			return true
		}
	}
	return false
}

func containsForceInclude(sel *goquery.Selection) bool {
	for _, selector := range forceIncludeSelectors {
		if sel.Find(selector).Length() > 0 || sel.Is(selector) {
			return true
		}
	}
	return false
}
