package engine

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"

	"scorch/internal/scrape"
)

// TLSClient fetches with a Chrome TLS fingerprint via utls. Sites that
// reject Go's default ClientHello often accept this engine while still
// skipping the cost of a full browser.
type TLSClient struct {
	timeout time.Duration
	proxy   string // optional stealth proxy URL
}

// NewTLSClient builds the tls-client engine. proxy is used only for
// requests that carry the stealth flag; empty disables proxying.
func NewTLSClient(timeout time.Duration, proxy string) *TLSClient {
	return &TLSClient{timeout: timeout, proxy: proxy}
}

func (t *TLSClient) Name() string { return "tls-client" }

func (t *TLSClient) Scrape(ctx context.Context, req *scrape.EngineRequest) (*scrape.EngineResult, error) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, network, addr, req.SkipTLSVerification)
		},
	}

	proxyUsed := ""
	if req.Stealth && t.proxy != "" {
		if proxyURL, err := url.Parse(t.proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			proxyUsed = "stealth"
		}
	}

	client := &http.Client{Transport: transport, Timeout: t.timeout}
	defer client.CloseIdleConnections()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &scrape.EngineError{Engine: t.Name(), Err: err}
	}
	applyHeaders(httpReq, req)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(t.Name(), req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &scrape.EngineError{Engine: t.Name(), Err: err}
	}

	res := buildResult(resp, body)
	res.ProxyUsed = proxyUsed
	return res, nil
}

// dialChromeTLS opens a TLS connection presenting Chrome's ClientHello.
func dialChromeTLS(ctx context.Context, network, addr string, insecure bool) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := utls.UClient(rawConn, &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: insecure,
	}, utls.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
