package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzhttp"
)

// maxBodySize caps registry response bodies.
const maxBodySize = 8 << 20

// Response is the raw result of a registry GET.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues GET requests against registry endpoints. Implementations
// return an error only when no HTTP response was obtained.
type Transport interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// TransportOptions configures NewHTTPTransport.
type TransportOptions struct {
	UserAgent      string
	RequestTimeout time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	Logger         *slog.Logger
}

// HTTPTransport is the production Transport: pooled connections, gzip
// negotiation and bounded retries of transient failures.
type HTTPTransport struct {
	client    *retryablehttp.Client
	userAgent string
}

// NewHTTPTransport builds an HTTPTransport.
func NewHTTPTransport(opts TransportOptions) *HTTPTransport {
	hc := cleanhttp.DefaultPooledClient()
	hc.Transport = gzhttp.Transport(cleanhttp.DefaultPooledTransport())
	if opts.RequestTimeout > 0 {
		hc.Timeout = opts.RequestTimeout
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	// A nil Logger silences retryablehttp; its default writes to stderr.
	rc.Logger = nil
	if opts.Logger != nil {
		rc.Logger = opts.Logger
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "tfmcp"
	}
	return &HTTPTransport{client: rc, userAgent: ua}
}

// checkRetry retries connection errors and 5xx responses. Not-found and
// rate-limit responses are answers, not transient failures.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusTooManyRequests) {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Get implements Transport.
func (t *HTTPTransport) Get(ctx context.Context, url string) (*Response, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
