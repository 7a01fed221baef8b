package transform

import (
	"context"
	"regexp"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

var base64ImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(data:image/[^)]+\)`)

// removeBase64Images strips inline image payloads from markdown, which
// can dwarf the actual text content.
func removeBase64Images(_ context.Context, _ *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	if !meta.Options.RemoveBase64Images || doc.Markdown == "" {
		return doc, nil
	}
	doc.Markdown = base64ImageRe.ReplaceAllString(doc.Markdown, "![$1](<Base64-Image-Removed>)")
	return doc, nil
}
