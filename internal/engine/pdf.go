package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"scorch/internal/scrape"
)

// pdfPageBudgetMs is the rough per-page parse cost used to decide
// whether the remaining scrape budget can cover a document.
const pdfPageBudgetMs = 50

// PDF downloads and parses PDF documents into plain text markdown.
// pdfcpu only works on files, so bytes round-trip through a temp dir.
type PDF struct {
	client  *http.Client
	tempDir string
}

func NewPDF(timeout time.Duration) *PDF {
	tempDir := filepath.Join(os.TempDir(), "scorch-pdf")
	os.MkdirAll(tempDir, 0o755)
	return &PDF{
		client:  &http.Client{Timeout: timeout},
		tempDir: tempDir,
	}
}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Scrape(ctx context.Context, req *scrape.EngineRequest) (*scrape.EngineResult, error) {
	data := req.PDFPrefetch
	statusCode := 200
	finalURL := req.URL

	if len(data) == 0 {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
		if err != nil {
			return nil, &scrape.EngineError{Engine: p.Name(), Err: err}
		}
		applyHeaders(httpReq, req)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return nil, classifyTransportError(p.Name(), req.URL, err)
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &scrape.EngineError{Engine: p.Name(), Err: err}
		}
		statusCode = resp.StatusCode
		finalURL = resp.Request.URL.String()
	}

	// An HTML body where a PDF should be means an antibot interstitial;
	// the orchestrator retries once through a browser with prefetch.
	if !isPDFContent("", data) {
		if req.PDFPrefetch != nil {
			return nil, &scrape.PDFPrefetchFailedError{URL: req.URL}
		}
		return nil, &scrape.PDFAntibotError{URL: req.URL}
	}

	text, pages, err := p.extractText(ctx, data)
	if err != nil {
		return nil, err
	}

	return &scrape.EngineResult{
		URL:         finalURL,
		StatusCode:  statusCode,
		ContentType: "application/pdf",
		Markdown:    text,
		NumPages:    pages,
		PDFBytes:    data,
	}, nil
}

func (p *PDF) extractText(ctx context.Context, data []byte) (string, int, error) {
	tempFile := filepath.Join(p.tempDir, uuid.NewString()+".pdf")
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return "", 0, &scrape.EngineError{Engine: p.Name(), Err: err}
	}
	defer os.Remove(tempFile)

	conf := pdfmodel.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", 0, &scrape.EngineError{Engine: p.Name(), Err: fmt.Errorf("read pdf: %w", err)}
	}
	pageCount := pdfCtx.PageCount

	if deadline, ok := ctx.Deadline(); ok {
		neededMs := pageCount * pdfPageBudgetMs
		if remaining := time.Until(deadline); remaining < time.Duration(neededMs)*time.Millisecond {
			return "", 0, &scrape.PDFInsufficientTimeError{Pages: pageCount, NeededMs: neededMs}
		}
	}

	outDir := filepath.Join(p.tempDir, "pages_"+uuid.NewString())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", 0, &scrape.EngineError{Engine: p.Name(), Err: err}
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", 0, &scrape.EngineError{Engine: p.Name(), Err: fmt.Errorf("extract pdf content: %w", err)}
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(f.Name(), "Content_page_%d", &pageNum); err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(content)
	}

	nums := make([]int, 0, len(pageTexts))
	for n := range pageTexts {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var b strings.Builder
	for _, n := range nums {
		text := strings.TrimSpace(pageTexts[n])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), pageCount, nil
}
