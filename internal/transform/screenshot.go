package transform

import (
	"context"
	"encoding/base64"
	"strings"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

// uploadScreenshot moves inline screenshot data into blob storage so
// API responses stay small. Without storage the data URI is kept.
func uploadScreenshot(ctx context.Context, p *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	if p.blob == nil {
		return doc, nil
	}

	if url, ok := uploadDataURI(ctx, p, meta, doc.Screenshot); ok {
		doc.Screenshot = url
	}
	if doc.Actions != nil {
		for i, shot := range doc.Actions.Screenshots {
			if url, ok := uploadDataURI(ctx, p, meta, shot); ok {
				doc.Actions.Screenshots[i] = url
			}
		}
	}
	return doc, nil
}

func uploadDataURI(ctx context.Context, p *Pipeline, meta *scrape.Meta, dataURI string) (string, bool) {
	if !strings.HasPrefix(dataURI, "data:image/") {
		return "", false
	}
	comma := strings.Index(dataURI, ",")
	if comma < 0 {
		return "", false
	}
	header := dataURI[len("data:"):comma]
	contentType := strings.TrimSuffix(header, ";base64")

	raw, err := base64.StdEncoding.DecodeString(dataURI[comma+1:])
	if err != nil {
		meta.Logger.Debug("screenshot decode failed", "error", err)
		return "", false
	}
	url, err := p.blob.Put(ctx, contentType, raw)
	if err != nil {
		// Upload failures degrade to the inline data URI.
		meta.Logger.Warn("screenshot upload failed", "error", err)
		return "", false
	}
	return url, true
}
