package scrape

import (
	"fmt"
	"strings"
)

// The error taxonomy below mirrors the propagation policy of the
// orchestrator: engine-tier failures are absorbed and the waterfall
// moves on; feature-negotiation errors restart the outer loop; the rest
// are terminal for the scrape and map onto HTTP statuses at the API
// layer.

// EngineError is an engine-internal failure. Recoverable: the waterfall
// tries the next engine.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// EngineUnsuccessfulError marks a 2xx response whose extracted content
// was empty — suspicious enough to try the next engine.
type EngineUnsuccessfulError struct {
	Engine     string
	StatusCode int
}

func (e *EngineUnsuccessfulError) Error() string {
	return fmt.Sprintf("engine %s returned an empty document (status %d)", e.Engine, e.StatusCode)
}

// IndexMissError means the index engine had no cached entry. Recoverable.
type IndexMissError struct{ URL string }

func (e *IndexMissError) Error() string { return "no index entry for " + e.URL }

// AddFeatureError widens the required feature set and restarts engine
// selection. Internal to the orchestrator, never surfaced.
type AddFeatureError struct {
	Features    []Feature
	PDFPrefetch []byte
}

func (e *AddFeatureError) Error() string {
	return "engine requires additional features: " + joinFeatures(e.Features)
}

// RemoveFeatureError narrows the required feature set and restarts
// engine selection. Internal to the orchestrator, never surfaced.
type RemoveFeatureError struct{ Features []Feature }

func (e *RemoveFeatureError) Error() string {
	return "engine cannot serve features: " + joinFeatures(e.Features)
}

func joinFeatures(fs []Feature) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// SiteError means a browser engine loaded the page but the site itself
// failed (chrome error page, navigation failure). Terminal.
type SiteError struct{ Code string }

func (e *SiteError) Error() string {
	return "site failed to load: " + e.Code
}

// SSLError is a TLS handshake or certificate failure. Terminal unless
// the caller opts into skipTlsVerification.
type SSLError struct{ Err error }

func (e *SSLError) Error() string {
	return fmt.Sprintf("TLS error: %v (retry with skipTlsVerification if the site is trusted)", e.Err)
}

func (e *SSLError) Unwrap() error { return e.Err }

// DNSResolutionError means the hostname did not resolve. Terminal.
type DNSResolutionError struct{ Host string }

func (e *DNSResolutionError) Error() string {
	return "DNS resolution failed for " + e.Host
}

// ActionError reports a failed page-interaction step. Terminal.
type ActionError struct {
	Index  int
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) failed: %v", e.Index, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// UnsupportedFileError is returned for content types no engine can
// process. Terminal.
type UnsupportedFileError struct{ ContentType string }

func (e *UnsupportedFileError) Error() string {
	return "unsupported file type: " + e.ContentType
}

// PDFAntibotError means a PDF URL is guarded by an antibot wall; the
// orchestrator retries once through a browser engine with prefetched
// content before giving up.
type PDFAntibotError struct{ URL string }

func (e *PDFAntibotError) Error() string { return "PDF is behind an antibot wall: " + e.URL }

// PDFPrefetchFailedError means the antibot retry prefetch returned no
// usable bytes. Terminal.
type PDFPrefetchFailedError struct{ URL string }

func (e *PDFPrefetchFailedError) Error() string { return "PDF prefetch returned no content: " + e.URL }

// PDFInsufficientTimeError means the remaining scrape budget cannot
// cover parsing the document. Terminal.
type PDFInsufficientTimeError struct {
	Pages    int
	NeededMs int
}

func (e *PDFInsufficientTimeError) Error() string {
	return fmt.Sprintf("insufficient time to parse PDF (%d pages, needs ~%dms)", e.Pages, e.NeededMs)
}

// LLMRefusalError means the model declined to produce structured
// output. Terminal for the scrape.
type LLMRefusalError struct{ Reason string }

func (e *LLMRefusalError) Error() string {
	if e.Reason == "" {
		return "LLM refused to extract structured data"
	}
	return "LLM refused to extract structured data: " + e.Reason
}

// CostLimitExceededError propagates upward across scrapes once the
// extraction token budget for a job is exhausted.
type CostLimitExceededError struct{}

func (e *CostLimitExceededError) Error() string { return "cost limit exceeded" }

// ZDRViolationError rejects a request whose options are incompatible
// with a zero-data-retention policy.
type ZDRViolationError struct{ Feature string }

func (e *ZDRViolationError) Error() string {
	return "zero data retention policy forbids " + e.Feature
}

// NoEnginesLeftError is the terminal outcome of a waterfall where every
// engine failed or was ineligible.
type NoEnginesLeftError struct{ Tried []string }

func (e *NoEnginesLeftError) Error() string {
	if len(e.Tried) == 0 {
		return "no scraping engines are eligible for this request"
	}
	return "all scraping engines failed (tried: " + strings.Join(e.Tried, ", ") + ")"
}

// ScrapeTimeoutError fires when the whole-scrape budget expires.
type ScrapeTimeoutError struct{}

func (e *ScrapeTimeoutError) Error() string {
	return "scrape timed out before any engine produced a result"
}

// EngineSnipedError cancels in-flight engines after a winner has been
// accepted. Internal, never surfaced.
type EngineSnipedError struct{}

func (e *EngineSnipedError) Error() string { return "engine sniped: another engine won" }

// JobWaitTimeoutError is returned when waiting on an async job result
// exceeds the caller's budget.
type JobWaitTimeoutError struct{ JobID string }

func (e *JobWaitTimeoutError) Error() string { return "timed out waiting for job " + e.JobID }
