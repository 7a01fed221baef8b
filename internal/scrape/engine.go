package scrape

import (
	"context"
	"sort"
	"time"

	"scorch/internal/model"
)

// EngineRequest is the flattened view of a scrape an engine needs.
type EngineRequest struct {
	URL                 string
	Headers             map[string]string
	UserAgent           string
	Mobile              bool
	SkipTLSVerification bool
	WaitFor             time.Duration
	BlockAds            bool
	Stealth             bool
	Screenshot          bool
	ScreenshotFullPage  bool
	Actions             []model.Action
	Location            *model.Location
	PDFPrefetch         []byte
	Timeout             time.Duration
}

// EngineResult is the raw outcome of one engine attempt, before the
// transformer pipeline runs.
type EngineResult struct {
	URL         string // final URL after redirects
	HTML        string
	StatusCode  int
	ContentType string
	Screenshot  string // data URI
	NumPages    int    // PDFs only
	ProxyUsed   string
	Actions     *model.ActionsResult
	// PDFBytes lets the orchestrator hand prefetched content to a
	// browser engine during the antibot retry.
	PDFBytes []byte
	Markdown string // set by engines that produce text directly (pdf)
	Cached   bool   // true for index hits
}

// Engine is a fetch strategy. Implementations live in internal/engine;
// the orchestrator reasons only over descriptors and this interface.
type Engine interface {
	Name() string
	Scrape(ctx context.Context, req *EngineRequest) (*EngineResult, error)
}

// Descriptor is the static capability record for an engine.
type Descriptor struct {
	Name            string
	Features        []Feature
	OnlyWhen        Feature // eligible only when this feature is required; "" = always
	Quality         int     // higher wins
	Cost            int     // tie-break: lower wins
	TypicalMs       int
	MaxReasonableMs int
}

func (d *Descriptor) supports(f Feature) bool {
	for _, sf := range d.Features {
		if sf == f {
			return true
		}
	}
	return false
}

// FallbackEntry pairs an engine with the required features it cannot
// serve. A non-empty UnsupportedFeatures on the winning engine becomes
// a user-visible warning.
type FallbackEntry struct {
	Engine              Engine
	Descriptor          Descriptor
	UnsupportedFeatures []Feature

	// LastResult holds the accepted raw result for post-acceptance
	// bookkeeping (index write-back).
	LastResult *EngineResult
}

// Registry is the catalog of available engines.
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	engine Engine
	desc   Descriptor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds an engine with its descriptor.
func (r *Registry) Register(e Engine, d Descriptor) {
	d.Name = e.Name()
	r.entries = append(r.entries, registryEntry{engine: e, desc: d})
}

// Get returns the engine with the given name.
func (r *Registry) Get(name string) (Engine, Descriptor, bool) {
	for _, e := range r.entries {
		if e.desc.Name == name {
			return e.engine, e.desc, true
		}
	}
	return nil, Descriptor{}, false
}

// Features an engine may be allowed to silently lack: the result is
// still useful, just degraded.
var degradableFeatures = map[Feature]struct{}{
	FeatureDisableAdblock: {},
	FeatureFastMode:       {},
	FeatureLocation:       {},
}

// BuildFallbackList orders eligible engines for a scrape. With a forced
// engine only that engine is returned, carrying whatever features it
// cannot serve. Otherwise engines supporting every hard-required flag
// (degradable flags may be missing) are sorted by quality desc, cost
// asc.
func (r *Registry) BuildFallbackList(meta *Meta) []FallbackEntry {
	if meta.ForceEngine != "" {
		if eng, desc, ok := r.Get(meta.ForceEngine); ok {
			return []FallbackEntry{{
				Engine:              eng,
				Descriptor:          desc,
				UnsupportedFeatures: missingFeatures(&desc, meta.Features),
			}}
		}
		return nil
	}

	out := make([]FallbackEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.desc.OnlyWhen != "" && !meta.Features.Has(e.desc.OnlyWhen) {
			continue
		}
		missing := missingFeatures(&e.desc, meta.Features)
		eligible := true
		for _, f := range missing {
			if _, degradable := degradableFeatures[f]; !degradable {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}
		out = append(out, FallbackEntry{Engine: e.engine, Descriptor: e.desc, UnsupportedFeatures: missing})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Descriptor.Quality != out[j].Descriptor.Quality {
			return out[i].Descriptor.Quality > out[j].Descriptor.Quality
		}
		return out[i].Descriptor.Cost < out[j].Descriptor.Cost
	})
	return out
}

func missingFeatures(d *Descriptor, required FeatureSet) []Feature {
	var missing []Feature
	for f := range required {
		if !d.supports(f) {
			missing = append(missing, f)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// BuildEngineRequest flattens Meta into the request handed to engines.
func BuildEngineRequest(meta *Meta) *EngineRequest {
	opts := meta.Options
	req := &EngineRequest{
		URL:                 meta.FetchURL(),
		Headers:             opts.Headers,
		Mobile:              opts.Mobile,
		SkipTLSVerification: opts.SkipTLSVerification,
		BlockAds:            opts.BlockAds,
		Stealth:             meta.Features.Has(FeatureStealthProxy),
		Screenshot:          meta.Features.Has(FeatureScreenshot),
		ScreenshotFullPage:  meta.Features.Has(FeatureScreenshotFull),
		Actions:             opts.Actions,
		Location:            opts.Location,
		PDFPrefetch:         meta.PDFPrefetch,
	}
	if opts.WaitFor > 0 {
		req.WaitFor = time.Duration(opts.WaitFor) * time.Millisecond
	}
	if opts.Timeout > 0 {
		req.Timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	return req
}
