package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics, in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	engineAttempts = make(map[engineKey]int64)
	engineWins     = make(map[string]int64)

	crawlsTotal       = make(map[string]int64)
	crawlPagesScraped int64

	llmExtracts = make(map[llmKey]int64)

	retentionJobsDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type engineKey struct {
	Engine  string
	Outcome string // "success", "error", "unsuccessful"
}

type llmKey struct {
	Provider string
	Model    string
	Success  string
}

// RecordRequest increments the request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	requestsTotal[reqKey{Method: method, Path: path, Status: status}]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordEngineAttempt counts one waterfall attempt per engine and
// outcome.
func RecordEngineAttempt(engine, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	engineAttempts[engineKey{Engine: engine, Outcome: outcome}]++
}

// RecordEngineWin counts the engine whose result was accepted.
func RecordEngineWin(engine string) {
	mu.Lock()
	defer mu.Unlock()
	engineWins[engine]++
}

// RecordCrawl counts one finished crawl by terminal status and the
// pages it scraped.
func RecordCrawl(status string, pages int) {
	mu.Lock()
	defer mu.Unlock()
	crawlsTotal[status]++
	if pages > 0 {
		crawlPagesScraped += int64(pages)
	}
}

// RecordLLMExtract increments LLM extract counters.
func RecordLLMExtract(provider, model string, success bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	llmExtracts[llmKey{Provider: provider, Model: model, Success: s}]++
}

// RecordRetentionJobs counts jobs deleted by TTL cleanup.
func RecordRetentionJobs(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP scorch_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE scorch_http_requests_total counter\n")

	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "scorch_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP scorch_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE scorch_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP scorch_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE scorch_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "scorch_http_request_duration_ms_sum{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "scorch_http_request_duration_ms_count{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP scorch_engine_attempts_total Scrape engine attempts by outcome\n")
	b.WriteString("# TYPE scorch_engine_attempts_total counter\n")

	var engKeys []engineKey
	for k := range engineAttempts {
		engKeys = append(engKeys, k)
	}
	sort.Slice(engKeys, func(i, j int) bool {
		if engKeys[i].Engine != engKeys[j].Engine {
			return engKeys[i].Engine < engKeys[j].Engine
		}
		return engKeys[i].Outcome < engKeys[j].Outcome
	})
	for _, k := range engKeys {
		fmt.Fprintf(&b, "scorch_engine_attempts_total{engine=%q,outcome=%q} %d\n",
			k.Engine, k.Outcome, engineAttempts[k])
	}

	b.WriteString("# HELP scorch_engine_wins_total Accepted results by winning engine\n")
	b.WriteString("# TYPE scorch_engine_wins_total counter\n")

	var winEngines []string
	for e := range engineWins {
		winEngines = append(winEngines, e)
	}
	sort.Strings(winEngines)
	for _, e := range winEngines {
		fmt.Fprintf(&b, "scorch_engine_wins_total{engine=%q} %d\n", e, engineWins[e])
	}

	b.WriteString("# HELP scorch_crawls_total Finished crawls by terminal status\n")
	b.WriteString("# TYPE scorch_crawls_total counter\n")

	var statuses []string
	for s := range crawlsTotal {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "scorch_crawls_total{status=%q} %d\n", s, crawlsTotal[s])
	}

	b.WriteString("# HELP scorch_crawl_pages_scraped_total Pages scraped across all crawls\n")
	b.WriteString("# TYPE scorch_crawl_pages_scraped_total counter\n")
	fmt.Fprintf(&b, "scorch_crawl_pages_scraped_total %d\n", crawlPagesScraped)

	b.WriteString("# HELP scorch_llm_extract_requests_total Total LLM extract requests\n")
	b.WriteString("# TYPE scorch_llm_extract_requests_total counter\n")

	var llmKeys []llmKey
	for k := range llmExtracts {
		llmKeys = append(llmKeys, k)
	}
	sort.Slice(llmKeys, func(i, j int) bool {
		if llmKeys[i].Provider != llmKeys[j].Provider {
			return llmKeys[i].Provider < llmKeys[j].Provider
		}
		if llmKeys[i].Model != llmKeys[j].Model {
			return llmKeys[i].Model < llmKeys[j].Model
		}
		return llmKeys[i].Success < llmKeys[j].Success
	})
	for _, k := range llmKeys {
		fmt.Fprintf(&b, "scorch_llm_extract_requests_total{provider=%q,model=%q,success=%q} %d\n",
			k.Provider, k.Model, k.Success, llmExtracts[k])
	}

	b.WriteString("# HELP scorch_retention_jobs_deleted_total Total jobs deleted by TTL\n")
	b.WriteString("# TYPE scorch_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "scorch_retention_jobs_deleted_total %d\n", retentionJobsDeleted)

	return b.String()
}
