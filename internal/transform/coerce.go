package transform

import (
	"context"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

// coerceFieldsToFormats is the last step: it drops content fields the
// caller did not ask for and warns about requested formats that could
// not be produced. Markdown is the default format when none are named.
func coerceFieldsToFormats(_ context.Context, _ *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	formats := meta.Options.Formats
	if len(formats) == 0 {
		formats = []string{"markdown"}
	}

	want := make(map[string]bool, len(formats))
	for _, f := range formats {
		want[f] = true
	}

	check := func(format string, present bool) {
		if want[format] && !present {
			appendWarning(&doc, "requested format "+format+" could not be produced")
		}
	}
	check("markdown", doc.Markdown != "")
	check("html", doc.HTML != "")
	check("rawHtml", doc.RawHTML != "")
	check("links", doc.Links != nil)
	check("screenshot", doc.Screenshot != "")
	if want["screenshot@fullPage"] && doc.Screenshot == "" {
		appendWarning(&doc, "requested format screenshot@fullPage could not be produced")
	}
	if (want["json"] || want["extract"]) && doc.JSON == nil {
		appendWarning(&doc, "requested format json could not be produced")
	}

	if !want["markdown"] {
		doc.Markdown = ""
	}
	if !want["html"] {
		doc.HTML = ""
	}
	if !want["rawHtml"] {
		doc.RawHTML = ""
	}
	if !want["links"] {
		doc.Links = nil
	}
	if !want["screenshot"] && !want["screenshot@fullPage"] {
		doc.Screenshot = ""
	}
	if !want["json"] && !want["extract"] {
		doc.JSON = nil
	}
	return doc, nil
}
