package transform

import (
	"context"

	"scorch/internal/blob"
	"scorch/internal/llm"
	"scorch/internal/model"
	"scorch/internal/scrape"
)

// Pipeline is the fixed transformer chain that turns a raw engine
// result into the final Document. Each step is a pure function over a
// Document value; order is semantically important — coercion must run
// last, after every content field has been derived.
type Pipeline struct {
	llm  llm.Client   // nil disables json extraction
	blob blob.Storage // nil keeps screenshots as data URIs
}

func NewPipeline(llmClient llm.Client, blobStorage blob.Storage) *Pipeline {
	return &Pipeline{llm: llmClient, blob: blobStorage}
}

type step struct {
	name string
	fn   func(ctx context.Context, p *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error)
}

var steps = []step{
	{"deriveHTMLFromRawHTML", deriveHTMLFromRawHTML},
	{"deriveMarkdownFromHTML", deriveMarkdownFromHTML},
	{"deriveLinksFromHTML", deriveLinksFromHTML},
	{"deriveMetadataFromRawHTML", deriveMetadataFromRawHTML},
	{"uploadScreenshot", uploadScreenshot},
	{"performLLMExtract", performLLMExtract},
	{"removeBase64Images", removeBase64Images},
	{"coerceFieldsToFormats", coerceFieldsToFormats},
}

// Run executes the chain. The seed Document carries the raw engine
// output plus response metadata; everything else is derived.
func (p *Pipeline) Run(ctx context.Context, meta *scrape.Meta, res *scrape.EngineResult) (*model.Document, error) {
	doc := model.Document{
		RawHTML:    res.HTML,
		Markdown:   res.Markdown, // pre-filled by text-native engines (pdf)
		Screenshot: res.Screenshot,
		Actions:    res.Actions,
		Metadata: model.Metadata{
			SourceURL:   meta.URL,
			URL:         res.URL,
			StatusCode:  res.StatusCode,
			ContentType: res.ContentType,
			NumPages:    res.NumPages,
			ProxyUsed:   res.ProxyUsed,
		},
	}

	for _, s := range steps {
		if err := meta.Abort.ThrowIfAborted(); err != nil {
			return nil, err
		}
		next, err := s.fn(ctx, p, meta, doc)
		if err != nil {
			meta.Logger.Debug("transformer failed", "step", s.name, "error", err)
			return nil, err
		}
		doc = next
	}
	return &doc, nil
}

// Transform adapts the pipeline to the orchestrator's hook signature.
func (p *Pipeline) Transform(ctx context.Context, meta *scrape.Meta, res *scrape.EngineResult) (*model.Document, error) {
	return p.Run(ctx, meta, res)
}
