package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scorch/internal/scrape"
)

// Provider represents a logical LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// ExtractRequest asks a model to pull structured JSON out of page
// markdown. Schema, Prompt, or both may be set.
type ExtractRequest struct {
	URL          string
	Markdown     string
	Prompt       string
	SystemPrompt string
	Schema       map[string]any
	Temperature  float64
}

// ExtractResult carries the parsed JSON plus token usage for cost
// accounting.
type ExtractResult struct {
	Data             any
	PromptTokens     int
	CompletionTokens int
}

// Client is the abstraction used by the transformer pipeline.
type Client interface {
	ExtractJSON(ctx context.Context, req ExtractRequest) (ExtractResult, error)
	MaxInputTokens() int
	// Describe reports the provider and model for logging and metrics.
	Describe() (provider, model string)
}

// ProviderConfig is the static configuration for one provider.
type ProviderConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxInputTokens int
}

// NewClient constructs a Client for the named provider.
func NewClient(provider string, cfg ProviderConfig) (Client, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("llm provider %s is not fully configured", provider)
	}
	maxInput := cfg.MaxInputTokens
	if maxInput <= 0 {
		maxInput = 128000
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}

	switch Provider(provider) {
	case ProviderOpenAI:
		return &openAIClient{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, model: cfg.Model, maxInput: maxInput, http: httpClient}, nil
	case ProviderAnthropic:
		return &anthropicClient{apiKey: cfg.APIKey, model: cfg.Model, maxInput: maxInput, http: httpClient}, nil
	case ProviderGoogle:
		return &googleClient{apiKey: cfg.APIKey, model: cfg.Model, maxInput: maxInput, http: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

const defaultSystemPrompt = "You are a JSON-only extractor. Respond with a single JSON object and no extra text."

// buildUserContent assembles the extraction prompt. The markdown is
// assumed to be pre-trimmed to the token budget by the caller.
func buildUserContent(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Extract structured data from the markdown content of ")
	b.WriteString(req.URL)
	b.WriteString(".")
	if req.Schema != nil {
		schemaJSON, _ := json.Marshal(req.Schema)
		b.WriteString(" The JSON object must conform to this JSON schema:\n")
		b.Write(schemaJSON)
	}
	if req.Prompt != "" {
		b.WriteString("\n\n")
		b.WriteString(req.Prompt)
	}
	b.WriteString("\n\nMarkdown:\n")
	b.WriteString(req.Markdown)
	return b.String()
}

func systemPrompt(req ExtractRequest) string {
	if req.SystemPrompt != "" {
		return req.SystemPrompt
	}
	return defaultSystemPrompt
}

// parseJSONData parses a JSON value out of model output, tolerating
// chatter around the first {...} or [...] block.
func parseJSONData(content string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(content), &data); err == nil {
		return data, nil
	}

	start := strings.IndexAny(content, "{[")
	if start == -1 {
		return nil, errors.New("no JSON value found in content")
	}
	end := strings.LastIndexAny(content, "}]")
	if end <= start {
		return nil, errors.New("no JSON value found in content")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// looksLikeRefusal flags outputs where the model declined instead of
// extracting.
func looksLikeRefusal(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, marker := range []string{"i cannot", "i can't", "i am unable", "i'm unable", "i won't"} {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

func finishExtract(content string, promptTokens, completionTokens int) (ExtractResult, error) {
	data, err := parseJSONData(content)
	if err != nil {
		if looksLikeRefusal(content) {
			return ExtractResult{}, &scrape.LLMRefusalError{Reason: strings.TrimSpace(content)}
		}
		return ExtractResult{}, fmt.Errorf("failed to parse JSON from LLM response: %w", err)
	}
	return ExtractResult{Data: data, PromptTokens: promptTokens, CompletionTokens: completionTokens}, nil
}

// openAIClient implements Client using OpenAI-compatible Chat Completions.
type openAIClient struct {
	apiKey   string
	baseURL  string
	model    string
	maxInput int
	http     *http.Client
}

func (c *openAIClient) MaxInputTokens() int { return c.maxInput }

func (c *openAIClient) Describe() (string, string) { return string(ProviderOpenAI), c.model }

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
		Refusal string            `json:"refusal"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *openAIClient) ExtractJSON(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	body := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemPrompt(req)},
			{Role: "user", Content: buildUserContent(req)},
		},
		Temperature:    req.Temperature,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ExtractResult{}, err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint += "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return ExtractResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ExtractResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExtractResult{}, fmt.Errorf("openai chat completion failed with status %d", resp.StatusCode)
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ExtractResult{}, err
	}
	if len(parsed.Choices) == 0 {
		return ExtractResult{}, errors.New("openai chat completion returned no choices")
	}
	if refusal := parsed.Choices[0].Refusal; refusal != "" {
		return ExtractResult{}, &scrape.LLMRefusalError{Reason: refusal}
	}

	return finishExtract(parsed.Choices[0].Message.Content,
		parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
}

// anthropicClient implements Client using Anthropic's Messages API.
type anthropicClient struct {
	apiKey   string
	model    string
	maxInput int
	http     *http.Client
}

func (c *anthropicClient) MaxInputTokens() int { return c.maxInput }

func (c *anthropicClient) Describe() (string, string) { return string(ProviderAnthropic), c.model }

type anthropicMessagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicTextContent `json:"content"`
}

type anthropicTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicTextContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *anthropicClient) ExtractJSON(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	body := anthropicMessagesRequest{
		Model:       c.model,
		MaxTokens:   4096,
		System:      systemPrompt(req),
		Temperature: req.Temperature,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicTextContent{{Type: "text", Text: buildUserContent(req)}},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ExtractResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.anthropic.com/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return ExtractResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ExtractResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExtractResult{}, fmt.Errorf("anthropic messages request failed with status %d", resp.StatusCode)
	}

	var parsed anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ExtractResult{}, err
	}
	if len(parsed.Content) == 0 {
		return ExtractResult{}, errors.New("anthropic messages returned no content")
	}

	return finishExtract(parsed.Content[0].Text,
		parsed.Usage.InputTokens, parsed.Usage.OutputTokens)
}

// googleClient implements Client using Gemini's generateContent API.
type googleClient struct {
	apiKey   string
	model    string
	maxInput int
	http     *http.Client
}

func (c *googleClient) MaxInputTokens() int { return c.maxInput }

func (c *googleClient) Describe() (string, string) { return string(ProviderGoogle), c.model }

type googleGenerateContentRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *googleClient) ExtractJSON(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	body := googleGenerateContentRequest{
		Contents: []googleContent{
			{Parts: []googlePart{{Text: systemPrompt(req) + "\n\n" + buildUserContent(req)}}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ExtractResult{}, err
	}

	base := "https://generativelanguage.googleapis.com/v1beta"
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, c.model, url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return ExtractResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ExtractResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExtractResult{}, fmt.Errorf("google generateContent failed with status %d", resp.StatusCode)
	}

	var parsed googleGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ExtractResult{}, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return ExtractResult{}, errors.New("google generateContent returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return finishExtract(sb.String(),
		parsed.UsageMetadata.PromptTokenCount, parsed.UsageMetadata.CandidatesTokenCount)
}
