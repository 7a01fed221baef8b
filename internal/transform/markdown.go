package transform

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

func deriveMarkdownFromHTML(_ context.Context, _ *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	// Text-native engines (pdf) arrive with markdown already set.
	if doc.Markdown != "" || doc.HTML == "" {
		return doc, nil
	}
	md, err := ToMarkdown(doc.HTML, meta.URL)
	if err != nil {
		return doc, err
	}
	doc.Markdown = md
	return doc, nil
}

var (
	multilineLinkRe = regexp.MustCompile(`\[[^\]]*\n[^\]]*\]`)
	skipToContentRe = regexp.MustCompile(`(?i)\[\s*skip to (?:main )?content\s*\]\([^)]*\)\s*`)
)

// ToMarkdown converts sanitized HTML into CommonMark. Link labels that
// span multiple lines get their newlines escaped so the link survives
// markdown parsing; boilerplate skip-navigation anchors are dropped.
func ToMarkdown(html, sourceURL string) (string, error) {
	hostname := ""
	if u, err := url.Parse(sourceURL); err == nil {
		hostname = u.Hostname()
	}

	converter := htmlmd.NewConverter(hostname, true, nil)
	md, err := converter.ConvertString(html)
	if err != nil {
		return "", err
	}

	md = multilineLinkRe.ReplaceAllStringFunc(md, func(label string) string {
		return strings.ReplaceAll(label, "\n", "\\\n")
	})
	md = skipToContentRe.ReplaceAllString(md, "")

	return strings.TrimSpace(md), nil
}
