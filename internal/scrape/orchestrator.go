package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"scorch/internal/metrics"
	"scorch/internal/model"
)

// maxFeatureRestarts caps how many times the outer loop may rebuild the
// fallback list after feature negotiation. Each restart changes the
// feature set, so the bound is a safety net against negotiation cycles.
const maxFeatureRestarts = 5

// TransformFunc turns a raw engine result into a normalized document.
// The orchestrator uses the transformed markdown to judge whether a
// result is acceptable, so transformation runs inside the waterfall.
type TransformFunc func(ctx context.Context, meta *Meta, res *EngineResult) (*model.Document, error)

// IndexWriter persists accepted plain fetches for the index engine.
type IndexWriter interface {
	Store(ctx context.Context, sourceURL string, res *EngineResult) error
}

// Orchestrator drives a single scrape: it negotiates features, orders
// engines into a waterfall, races them with staggered launches, and
// accepts the first result that yields usable content.
type Orchestrator struct {
	registry  *Registry
	transform TransformFunc
	index     IndexWriter // optional
}

func NewOrchestrator(registry *Registry, transform TransformFunc, index IndexWriter) *Orchestrator {
	return &Orchestrator{registry: registry, transform: transform, index: index}
}

// Scrape runs the full outer loop for one URL.
func (o *Orchestrator) Scrape(ctx context.Context, meta *Meta) (*model.Document, error) {
	pdfRetried := false

	for restart := 0; restart <= maxFeatureRestarts; restart++ {
		if err := meta.Abort.ThrowIfAborted(); err != nil {
			return nil, unwrapAbort(err)
		}

		list := o.registry.BuildFallbackList(meta)
		if len(list) == 0 {
			return nil, &NoEnginesLeftError{}
		}

		doc, winner, err := o.waterfall(ctx, meta, list)
		if err == nil {
			meta.WinnerEngine = winner.Descriptor.Name
			o.finish(ctx, meta, doc, winner)
			return doc, nil
		}

		// A forced engine disables feature negotiation: there is no
		// alternative engine to restart into.
		if meta.ForceEngine == "" {
			var addFeat *AddFeatureError
			if errors.As(err, &addFeat) {
				meta.Features.Add(addFeat.Features...)
				if len(addFeat.PDFPrefetch) > 0 {
					meta.PDFPrefetch = addFeat.PDFPrefetch
				}
				meta.Logger.Debug("restarting engine selection with widened features",
					"added", joinFeatures(addFeat.Features))
				continue
			}
			var removeFeat *RemoveFeatureError
			if errors.As(err, &removeFeat) {
				meta.Features.Remove(removeFeat.Features...)
				meta.Logger.Debug("restarting engine selection with narrowed features",
					"removed", joinFeatures(removeFeat.Features))
				continue
			}
			var antibot *PDFAntibotError
			if errors.As(err, &antibot) && !pdfRetried {
				if len(meta.PDFPrefetch) > 0 {
					return nil, &PDFPrefetchFailedError{URL: meta.FetchURL()}
				}
				// Dropping the pdf flag routes the retry through a
				// browser, which can usually pass the wall.
				pdfRetried = true
				meta.Features.Remove(FeaturePDF)
				meta.Logger.Info("PDF behind antibot wall, retrying through a browser")
				continue
			}
		}

		return nil, err
	}

	return nil, &NoEnginesLeftError{}
}

// finish applies post-acceptance bookkeeping: degraded-feature warnings
// and the index write-back.
func (o *Orchestrator) finish(ctx context.Context, meta *Meta, doc *model.Document, winner *FallbackEntry) {
	if len(winner.UnsupportedFeatures) > 0 {
		warning := "the winning engine could not honor: " + joinFeatures(winner.UnsupportedFeatures)
		if doc.Warning != "" {
			doc.Warning += "; " + warning
		} else {
			doc.Warning = warning
		}
	}
	if o.index != nil && winner.LastResult != nil {
		if err := o.index.Store(ctx, meta.URL, winner.LastResult); err != nil {
			meta.Logger.Debug("index write-back failed", "error", err)
		}
	}
}

type attemptOutcome struct {
	entry *FallbackEntry
	doc   *model.Document
	res   *EngineResult
	err   error
}

// waterfall races the fallback list with staggered launches: each
// engine gets a head start of one interval before the next one joins.
// The first acceptable result snipes all in-flight attempts.
func (o *Orchestrator) waterfall(ctx context.Context, meta *Meta, list []FallbackEntry) (*model.Document, *FallbackEntry, error) {
	interval := launchInterval(meta, len(list))

	snipeCtx, snipe := context.WithCancel(ctx)
	defer snipe()

	results := make(chan attemptOutcome, len(list))
	launched, pending := 0, 0
	var tried []string
	var lastErr error

	launchNext := func() {
		entry := &list[launched]
		launched++
		pending++
		tried = append(tried, entry.Descriptor.Name)
		go o.attempt(snipeCtx, meta, entry, results)
	}
	launchNext()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for pending > 0 {
		select {
		case <-timer.C:
			if launched < len(list) {
				launchNext()
				timer.Reset(interval)
			}

		case out := <-results:
			pending--
			if out.err == nil {
				metrics.RecordEngineAttempt(out.entry.Descriptor.Name, "success")
				snipe()
				out.entry.LastResult = out.res
				return out.doc, out.entry, nil
			}
			metrics.RecordEngineAttempt(out.entry.Descriptor.Name, "error")

			if isNegotiation(out.err) || !recoverableAttempt(out.err) {
				snipe()
				return nil, nil, out.err
			}

			meta.Logger.Debug("engine failed, falling through",
				"engine", out.entry.Descriptor.Name, "error", out.err)
			lastErr = out.err
			if launched < len(list) && pending == 0 {
				launchNext()
				timer.Reset(interval)
			}

		case <-ctx.Done():
			snipe()
			if err := meta.Abort.ThrowIfAborted(); err != nil {
				return nil, nil, unwrapAbort(err)
			}
			return nil, nil, ctx.Err()
		}
	}

	if lastErr != nil {
		return nil, nil, &NoEnginesLeftError{Tried: tried}
	}
	return nil, nil, &NoEnginesLeftError{}
}

// attempt runs one engine under its own engine-tier deadline and
// applies the acceptance predicate to the transformed document.
func (o *Orchestrator) attempt(ctx context.Context, meta *Meta, entry *FallbackEntry, results chan<- attemptOutcome) {
	engineTimeout := time.Duration(entry.Descriptor.MaxReasonableMs) * time.Millisecond
	if remaining, ok := meta.Abort.ScrapeTimeout(); ok && remaining < engineTimeout {
		engineTimeout = remaining
	}

	inst, cancel := NewTimeoutInstance(ctx, TierEngine, engineTimeout, func() error {
		return &EngineSnipedError{}
	})
	defer cancel()

	abort := meta.Abort.Child(inst)
	engCtx, cause, stop := abort.AsContext(ctx)
	defer stop()

	res, err := entry.Engine.Scrape(engCtx, BuildEngineRequest(meta))
	if err != nil {
		if engCtx.Err() != nil {
			if aerr := cause(); aerr != nil {
				err = aerr
			}
		}
		results <- attemptOutcome{entry: entry, err: err}
		return
	}

	// A fetch engine that hits a PDF body reroutes to the pdf engine by
	// widening the feature set with the bytes already in hand.
	if len(res.PDFBytes) > 0 && !meta.Features.Has(FeaturePDF) {
		results <- attemptOutcome{entry: entry, err: &AddFeatureError{
			Features:    []Feature{FeaturePDF},
			PDFPrefetch: res.PDFBytes,
		}}
		return
	}

	// Blocked statuses upgrade to the stealth proxy when the caller
	// allows automatic escalation.
	if isBlockedStatus(res.StatusCode) && !meta.Features.Has(FeatureStealthProxy) && autoProxy(meta.Options.Proxy) {
		results <- attemptOutcome{entry: entry, err: &AddFeatureError{
			Features: []Feature{FeatureStealthProxy},
		}}
		return
	}

	doc, err := o.transform(ctx, meta, res)
	if err != nil {
		results <- attemptOutcome{entry: entry, err: err}
		return
	}

	if !accepted(doc, res) {
		results <- attemptOutcome{entry: entry, err: &EngineUnsuccessfulError{
			Engine:     entry.Descriptor.Name,
			StatusCode: res.StatusCode,
		}}
		return
	}

	results <- attemptOutcome{entry: entry, doc: doc, res: res}
}

// accepted decides whether a transformed result ends the waterfall:
// any produced content, or a definitive non-success status that no
// other engine is likely to improve on. An empty 2xx is suspect and
// falls through to the next engine.
func accepted(doc *model.Document, res *EngineResult) bool {
	if len(strings.TrimSpace(doc.Markdown)) > 0 ||
		len(strings.TrimSpace(doc.HTML)) > 0 ||
		len(strings.TrimSpace(doc.RawHTML)) > 0 ||
		doc.Screenshot != "" || doc.JSON != nil {
		return true
	}
	if res.StatusCode == 304 {
		return false
	}
	return res.StatusCode < 200 || res.StatusCode >= 300
}

func isBlockedStatus(status int) bool {
	return status == 401 || status == 403 || status == 429
}

func autoProxy(proxy string) bool {
	return proxy == "" || proxy == "auto"
}

func isNegotiation(err error) bool {
	var add *AddFeatureError
	var remove *RemoveFeatureError
	var antibot *PDFAntibotError
	return errors.As(err, &add) || errors.As(err, &remove) || errors.As(err, &antibot)
}

// recoverableAttempt reports whether the waterfall should move on to
// the next engine after this failure.
func recoverableAttempt(err error) bool {
	var engErr *EngineError
	var unsuccessful *EngineUnsuccessfulError
	var miss *IndexMissError
	if errors.As(err, &engErr) || errors.As(err, &unsuccessful) || errors.As(err, &miss) {
		return true
	}
	return Recoverable(err)
}

// unwrapAbort converts a WrappedAbort into its throwable for callers
// above the orchestrator; plain context cancellation stays as-is.
func unwrapAbort(err error) error {
	var wa *WrappedAbort
	if errors.As(err, &wa) && wa.Inner != nil {
		return wa.Inner
	}
	return err
}

// launchInterval spaces engine launches so a slow early engine does not
// serialize the whole waterfall, while a short scrape budget compresses
// the stagger. Action- and extraction-bearing scrapes get a longer
// default window because their engines are legitimately slow.
func launchInterval(meta *Meta, engineCount int) time.Duration {
	divisor := engineCount
	if divisor > 2 {
		divisor = 2
	}
	if divisor < 1 {
		divisor = 1
	}
	if remaining, ok := meta.Abort.ScrapeTimeout(); ok {
		return remaining / time.Duration(divisor)
	}
	base := 120 * time.Second
	if meta.Features.Has(FeatureActions) || meta.Options.HasFormat("json") || meta.Options.HasFormat("extract") {
		base = 300 * time.Second
	}
	return base / time.Duration(divisor)
}
