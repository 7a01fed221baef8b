package transform

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

func deriveMetadataFromRawHTML(_ context.Context, _ *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	if doc.RawHTML == "" {
		return doc, nil
	}
	docURL := doc.Metadata.URL
	if docURL == "" {
		docURL = meta.URL
	}

	extracted, err := ExtractMetadata(doc.RawHTML, docURL)
	if err != nil {
		return doc, err
	}

	// Response-level fields set by the engine always win.
	extracted.SourceURL = doc.Metadata.SourceURL
	extracted.URL = doc.Metadata.URL
	extracted.StatusCode = doc.Metadata.StatusCode
	extracted.ContentType = doc.Metadata.ContentType
	extracted.NumPages = doc.Metadata.NumPages
	extracted.ProxyUsed = doc.Metadata.ProxyUsed
	extracted.Error = doc.Metadata.Error
	doc.Metadata = extracted
	return doc, nil
}

// ExtractMetadata walks the document head once. Standard keys keep
// their first value; og:locale:alternate collects every value;
// keywords becomes an array when repeated; description concatenates
// repeats with ", "; unknown meta keys land in Additional as a string
// first and an array on repeat.
func ExtractMetadata(rawHTML, docURL string) (model.Metadata, error) {
	var md model.Metadata

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return md, err
	}

	md.Title = strings.TrimSpace(gq.Find("title").First().Text())
	if lang, ok := gq.Find("html").First().Attr("lang"); ok {
		md.Language = strings.TrimSpace(lang)
	}

	var descriptions []string
	var keywords []string

	gq.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		key := sel.AttrOr("name", "")
		if key == "" {
			key = sel.AttrOr("property", "")
		}
		key = strings.TrimSpace(key)
		content := sel.AttrOr("content", "")
		if key == "" || content == "" {
			return
		}

		switch strings.ToLower(key) {
		case "description":
			descriptions = append(descriptions, content)
		case "keywords":
			keywords = append(keywords, content)
		case "robots":
			setFirst(&md.Robots, content)
		case "og:title":
			setFirst(&md.OgTitle, content)
		case "og:description":
			setFirst(&md.OgDescription, content)
		case "og:url":
			setFirst(&md.OgURL, content)
		case "og:image", "og:image:url", "og:image:secure_url":
			setFirst(&md.OgImage, content)
		case "og:audio":
			setFirst(&md.OgAudio, content)
		case "og:video":
			setFirst(&md.OgVideo, content)
		case "og:locale":
			setFirst(&md.OgLocale, content)
		case "og:locale:alternate":
			md.OgLocaleAlternate = append(md.OgLocaleAlternate, content)
		case "og:site_name":
			setFirst(&md.OgSiteName, content)
		case "dcterms.created":
			setFirst(&md.DCTermsCreated, content)
		case "dc.date.created":
			setFirst(&md.DCDateCreated, content)
		case "dc.date":
			setFirst(&md.DCDate, content)
		case "dcterms.type":
			setFirst(&md.DCTermsType, content)
		case "dc.type":
			setFirst(&md.DCType, content)
		case "dcterms.audience":
			setFirst(&md.DCTermsAudience, content)
		case "dcterms.subject":
			setFirst(&md.DCTermsSubject, content)
		case "dc.subject":
			setFirst(&md.DCSubject, content)
		case "dc.description":
			setFirst(&md.DCDescription, content)
		case "dcterms.keywords":
			setFirst(&md.DCTermsKeywords, content)
		case "article:modified_time":
			setFirst(&md.ModifiedTime, content)
		case "article:published_time":
			setFirst(&md.PublishedTime, content)
		case "article:tag":
			setFirst(&md.ArticleTag, content)
		case "article:section":
			setFirst(&md.ArticleSection, content)
		default:
			addAdditional(&md, key, content)
		}
	})

	md.Description = strings.Join(descriptions, ", ")
	switch len(keywords) {
	case 0:
	case 1:
		md.Keywords = keywords[0]
	default:
		md.Keywords = keywords
	}

	md.Favicon = extractFavicon(gq, docURL)
	return md, nil
}

func setFirst(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func addAdditional(md *model.Metadata, key, value string) {
	if md.Additional == nil {
		md.Additional = make(map[string]any)
	}
	switch existing := md.Additional[key].(type) {
	case nil:
		md.Additional[key] = value
	case string:
		md.Additional[key] = []string{existing, value}
	case []string:
		md.Additional[key] = append(existing, value)
	}
}

func extractFavicon(gq *goquery.Document, docURL string) string {
	href := ""
	for _, selector := range []string{`link[rel="icon"]`, `link[rel="shortcut icon"]`, `link[rel="apple-touch-icon"]`} {
		if v, ok := gq.Find(selector).First().Attr("href"); ok && strings.TrimSpace(v) != "" {
			href = strings.TrimSpace(v)
			break
		}
	}
	if href == "" {
		return ""
	}
	fav, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !fav.IsAbs() {
		base, err := url.Parse(docURL)
		if err != nil {
			return ""
		}
		fav = base.ResolveReference(fav)
	}
	return fav.String()
}
