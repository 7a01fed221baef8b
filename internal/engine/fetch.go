package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scorch/internal/scrape"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBodyBytes caps how much of a response we will buffer.
const maxBodyBytes = 10 * 1024 * 1024

// Fetch is the plain HTTP engine. Fast and cheap, no JS rendering.
type Fetch struct {
	client         *http.Client
	insecureClient *http.Client
}

// NewFetch builds the fetch engine with separate verified and
// skip-verify clients so TLS settings never leak between requests.
func NewFetch(timeout time.Duration) *Fetch {
	return &Fetch{
		client: &http.Client{Timeout: timeout},
		insecureClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (f *Fetch) Name() string { return "fetch" }

func (f *Fetch) Scrape(ctx context.Context, req *scrape.EngineRequest) (*scrape.EngineResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &scrape.EngineError{Engine: f.Name(), Err: err}
	}
	applyHeaders(httpReq, req)

	client := f.client
	if req.SkipTLSVerification {
		client = f.insecureClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(f.Name(), req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &scrape.EngineError{Engine: f.Name(), Err: err}
	}

	return buildResult(resp, body), nil
}

func applyHeaders(httpReq *http.Request, req *scrape.EngineRequest) {
	httpReq.Header.Set("User-Agent", defaultUserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if req.Location != nil && len(req.Location.Languages) > 0 {
		httpReq.Header.Set("Accept-Language", strings.Join(req.Location.Languages, ","))
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
}

// buildResult normalizes an HTTP response into an EngineResult. PDF
// bodies are carried as raw bytes so the orchestrator can reroute them
// to the pdf engine without a second fetch.
func buildResult(resp *http.Response, body []byte) *scrape.EngineResult {
	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")

	res := &scrape.EngineResult{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}
	if isPDFContent(contentType, body) {
		res.ContentType = "application/pdf"
		res.PDFBytes = body
		return res
	}
	res.HTML = string(body)
	return res
}

func isPDFContent(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return len(body) >= 5 && string(body[:5]) == "%PDF-"
}

// classifyTransportError maps dial and handshake failures onto the
// typed errors the orchestrator reacts to. Anything unrecognized stays
// a generic engine error so the waterfall can try the next engine.
func classifyTransportError(engineName, rawURL string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		host := dnsErr.Name
		if host == "" {
			if u, perr := url.Parse(rawURL); perr == nil {
				host = u.Hostname()
			}
		}
		return &scrape.DNSResolutionError{Host: host}
	}

	var (
		unknownAuth x509.UnknownAuthorityError
		certInvalid x509.CertificateInvalidError
		hostnameErr x509.HostnameError
		recordErr   tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuth) || errors.As(err, &certInvalid) ||
		errors.As(err, &hostnameErr) || errors.As(err, &recordErr) ||
		strings.Contains(err.Error(), "tls:") {
		return &scrape.SSLError{Err: err}
	}

	return &scrape.EngineError{Engine: engineName, Err: err}
}
