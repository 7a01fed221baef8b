package scrape

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"scorch/internal/model"
)

// passthroughTransform treats the raw HTML as markdown so acceptance
// hinges directly on what the stub engines return.
func passthroughTransform(_ context.Context, _ *Meta, res *EngineResult) (*model.Document, error) {
	return &model.Document{
		Markdown: res.HTML,
		Metadata: model.Metadata{StatusCode: res.StatusCode},
	}, nil
}

func TestOrchestrator_FallsThroughToNextEngine(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubEngine{name: "flaky", fn: func(_ context.Context, _ *EngineRequest) (*EngineResult, error) {
		return nil, &EngineError{Engine: "flaky", Err: errors.New("boom")}
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	reg.Register(&stubEngine{name: "solid"}, Descriptor{Quality: 20, Cost: 2, MaxReasonableMs: 5000})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	doc, err := o.Scrape(context.Background(), meta)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if meta.WinnerEngine != "solid" {
		t.Fatalf("winner = %q, want solid", meta.WinnerEngine)
	}
	if doc.Markdown == "" {
		t.Fatalf("expected content from the fallback engine")
	}
}

func TestOrchestrator_EmptyContentIsUnsuccessful(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubEngine{name: "empty", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		return &EngineResult{URL: req.URL, HTML: "   ", StatusCode: 200}, nil
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	reg.Register(&stubEngine{name: "full"}, Descriptor{Quality: 20, Cost: 2, MaxReasonableMs: 5000})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	if _, err := o.Scrape(context.Background(), meta); err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if meta.WinnerEngine != "full" {
		t.Fatalf("empty 200 must fall through, winner = %q", meta.WinnerEngine)
	}
}

func TestOrchestrator_NonSuccessStatusIsAccepted(t *testing.T) {
	reg := NewRegistry()
	var calls atomic.Int32
	reg.Register(&stubEngine{name: "notfound", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		calls.Add(1)
		return &EngineResult{URL: req.URL, StatusCode: 404}, nil
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	reg.Register(&stubEngine{name: "never", fn: func(_ context.Context, _ *EngineRequest) (*EngineResult, error) {
		t.Errorf("second engine must not run after a definitive 404")
		return nil, &EngineError{Engine: "never"}
	}}, Descriptor{Quality: 20, Cost: 2, MaxReasonableMs: 5000})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	doc, err := o.Scrape(context.Background(), meta)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if doc.Metadata.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", doc.Metadata.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("engine calls = %d, want 1", calls.Load())
	}
}

func TestOrchestrator_BlockedStatusUpgradesToStealth(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubEngine{name: "plain", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		return &EngineResult{URL: req.URL, HTML: "blocked", StatusCode: 403}, nil
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	reg.Register(&stubEngine{name: "stealthy", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		if !req.Stealth {
			t.Errorf("stealth engine must receive the stealth flag")
		}
		return &EngineResult{URL: req.URL, HTML: "content", StatusCode: 200, ProxyUsed: "stealth"}, nil
	}}, Descriptor{
		Features: []Feature{FeatureStealthProxy},
		Quality:  20, Cost: 2, MaxReasonableMs: 5000,
	})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	doc, err := o.Scrape(context.Background(), meta)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if meta.WinnerEngine != "stealthy" {
		t.Fatalf("winner = %q, want stealthy", meta.WinnerEngine)
	}
	if doc.Markdown != "content" {
		t.Fatalf("markdown = %q, want content", doc.Markdown)
	}
}

func TestOrchestrator_NoProxyUpgradeWhenPinned(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubEngine{name: "plain", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		return &EngineResult{URL: req.URL, HTML: "blocked", StatusCode: 403}, nil
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true, Proxy: "basic"})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	doc, err := o.Scrape(context.Background(), meta)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	// A pinned proxy means the 403 body is the final answer.
	if doc.Metadata.StatusCode != 403 {
		t.Fatalf("status = %d, want 403", doc.Metadata.StatusCode)
	}
}

func TestOrchestrator_PDFContentReroutesWithPrefetch(t *testing.T) {
	pdfBytes := []byte("%PDF-1.7 fake")

	reg := NewRegistry()
	reg.Register(&stubEngine{name: "fetchlike", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		return &EngineResult{URL: req.URL, StatusCode: 200, ContentType: "application/pdf", PDFBytes: pdfBytes}, nil
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	reg.Register(&stubEngine{name: "doc", fn: func(_ context.Context, req *EngineRequest) (*EngineResult, error) {
		if string(req.PDFPrefetch) != string(pdfBytes) {
			t.Errorf("pdf engine must receive the prefetched bytes")
		}
		return &EngineResult{URL: req.URL, StatusCode: 200, HTML: "", Markdown: "parsed text", NumPages: 3}, nil
	}}, Descriptor{
		Features: []Feature{FeaturePDF},
		OnlyWhen: FeaturePDF,
		Quality:  45, Cost: 3, MaxReasonableMs: 5000,
	})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, func(_ context.Context, _ *Meta, res *EngineResult) (*model.Document, error) {
		return &model.Document{Markdown: res.Markdown, Metadata: model.Metadata{StatusCode: res.StatusCode}}, nil
	}, nil)

	doc, err := o.Scrape(context.Background(), meta)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if meta.WinnerEngine != "doc" {
		t.Fatalf("winner = %q, want doc", meta.WinnerEngine)
	}
	if doc.Markdown != "parsed text" {
		t.Fatalf("markdown = %q, want parsed text", doc.Markdown)
	}
}

func TestOrchestrator_AllEnginesFail(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"a", "b"} {
		n := name
		reg.Register(&stubEngine{name: n, fn: func(_ context.Context, _ *EngineRequest) (*EngineResult, error) {
			return nil, &EngineError{Engine: n, Err: errors.New("down")}
		}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	}

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	_, err := o.Scrape(context.Background(), meta)
	var noEngines *NoEnginesLeftError
	if !errors.As(err, &noEngines) {
		t.Fatalf("err = %v, want NoEnginesLeftError", err)
	}
	if len(noEngines.Tried) != 2 {
		t.Fatalf("tried = %v, want both engines", noEngines.Tried)
	}
}

func TestOrchestrator_DegradedWinnerCarriesWarning(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubEngine{name: "basic"}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})

	// FastMode is degradable; the only engine does not support it.
	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true, FastMode: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	doc, err := o.Scrape(context.Background(), meta)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	if !strings.Contains(doc.Warning, string(FeatureFastMode)) {
		t.Fatalf("warning = %q, want mention of %s", doc.Warning, FeatureFastMode)
	}
}

func TestOrchestrator_TerminalErrorStopsWaterfall(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubEngine{name: "dns", fn: func(_ context.Context, _ *EngineRequest) (*EngineResult, error) {
		return nil, &DNSResolutionError{Host: "example.invalid"}
	}}, Descriptor{Quality: 40, Cost: 1, MaxReasonableMs: 5000})
	reg.Register(&stubEngine{name: "never", fn: func(_ context.Context, _ *EngineRequest) (*EngineResult, error) {
		t.Errorf("waterfall must stop on terminal errors")
		return nil, nil
	}}, Descriptor{Quality: 20, Cost: 2, MaxReasonableMs: 5000})

	meta := metaFor(t, &model.ScrapeOptions{BlockAds: true})
	o := NewOrchestrator(reg, passthroughTransform, nil)

	_, err := o.Scrape(context.Background(), meta)
	var dnsErr *DNSResolutionError
	if !errors.As(err, &dnsErr) {
		t.Fatalf("err = %v, want DNSResolutionError", err)
	}
}
