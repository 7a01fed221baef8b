package transform

import (
	"context"

	"scorch/internal/llm"
	"scorch/internal/metrics"
	"scorch/internal/model"
	"scorch/internal/scrape"
)

// performLLMExtract runs structured extraction when the json or
// extract format was requested. Token usage accrues on the scrape's
// cost tracker, which is shared across a crawl.
func performLLMExtract(ctx context.Context, p *Pipeline, meta *scrape.Meta, doc model.Document) (model.Document, error) {
	opts := meta.Options
	if !opts.HasFormat("json") && !opts.HasFormat("extract") {
		return doc, nil
	}
	if p.llm == nil {
		appendWarning(&doc, "json extraction requested but no LLM provider is configured")
		return doc, nil
	}

	jsonOpts := opts.JSONOptions
	if jsonOpts == nil {
		jsonOpts = &model.JSONOptions{}
	}

	prepared, wrapped := llm.PrepareSchema(jsonOpts.Schema)

	budget := llm.InputBudget(p.llm.MaxInputTokens())
	markdown := doc.Markdown
	if llm.EstimateTokens(markdown) > budget {
		markdown = llm.TrimToBudget(markdown, budget)
		appendWarning(&doc, "page content was trimmed to fit the extraction token budget")
	}

	result, err := p.llm.ExtractJSON(ctx, llm.ExtractRequest{
		URL:          meta.URL,
		Markdown:     markdown,
		Prompt:       jsonOpts.Prompt,
		SystemPrompt: jsonOpts.SystemPrompt,
		Schema:       prepared,
		Temperature:  jsonOpts.Temperature,
	})
	provider, mdl := p.llm.Describe()
	metrics.RecordLLMExtract(provider, mdl, err == nil)
	if err != nil {
		return doc, err
	}

	if meta.Cost.Add(result.PromptTokens, result.CompletionTokens) {
		return doc, &scrape.CostLimitExceededError{}
	}

	doc.JSON = llm.UnwrapResult(result.Data, wrapped)
	return doc, nil
}

func appendWarning(doc *model.Document, warning string) {
	if doc.Warning != "" {
		doc.Warning += "; " + warning
		return
	}
	doc.Warning = warning
}
