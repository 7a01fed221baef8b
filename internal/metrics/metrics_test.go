package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/v1/scrape", 200, 42)

	out := Export()
	if !strings.Contains(out, "scorch_http_requests_total{method=\"GET\",path=\"/v1/scrape\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /v1/scrape in export, got:\n%s", out)
	}
	if !strings.Contains(out, "scorch_http_request_duration_ms_sum") || !strings.Contains(out, "scorch_http_request_duration_ms_count") {
		t.Fatalf("expected latency metric headers in export, got:\n%s", out)
	}
}

func TestRecordEngineMetrics(t *testing.T) {
	RecordEngineAttempt("fetch", "error")
	RecordEngineAttempt("browser", "success")
	RecordEngineWin("browser")

	out := Export()
	if !strings.Contains(out, "scorch_engine_attempts_total{engine=\"fetch\",outcome=\"error\"}") {
		t.Fatalf("expected fetch attempt metric, got:\n%s", out)
	}
	if !strings.Contains(out, "scorch_engine_wins_total{engine=\"browser\"}") {
		t.Fatalf("expected browser win metric, got:\n%s", out)
	}
}

func TestRecordCrawlMetrics(t *testing.T) {
	RecordCrawl("completed", 12)
	RecordCrawl("cancelled", 3)

	out := Export()
	if !strings.Contains(out, "scorch_crawls_total{status=\"completed\"}") {
		t.Fatalf("expected completed crawl metric, got:\n%s", out)
	}
	if !strings.Contains(out, "scorch_crawls_total{status=\"cancelled\"}") {
		t.Fatalf("expected cancelled crawl metric, got:\n%s", out)
	}
	if !strings.Contains(out, "scorch_crawl_pages_scraped_total") {
		t.Fatalf("expected pages scraped metric, got:\n%s", out)
	}
}

func TestRecordLLMExtract(t *testing.T) {
	RecordLLMExtract("openai", "gpt-test", true)

	out := Export()
	if !strings.Contains(out, "scorch_llm_extract_requests_total{provider=\"openai\",model=\"gpt-test\",success=\"true\"}") {
		t.Fatalf("expected llm extract metric, got:\n%s", out)
	}
}
