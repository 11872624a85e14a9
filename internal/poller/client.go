package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
)

const defaultMaxBodySize = 1 << 20 // 1MB

// connection pooling limits; a device is a single small host, keep it gentle
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second
)

// Request describes one GET issued by a polling loop.
type Request struct {
	// URL is the absolute URL to fetch.
	URL string

	// Headers are extra headers sent with the request.
	Headers map[string]string

	// NoCache asks every cache on the path to revalidate.
	NoCache bool

	// MaxBytes limits the body size. A larger body fails the fetch at
	// StageRead. Zero means 1MB.
	MaxBytes int64
}

// Response holds the result of a request made by a [Fetcher].
type Response struct {
	// Body contains the response body.
	Body []byte

	// StatusCode is the HTTP status code. Zero if no response was received.
	StatusCode int

	// ContentType is the Content-Type header of the response.
	ContentType string

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error is a *[FetchError] if the request or body read failed.
	Error error
}

// Fetcher performs a single HTTP request bound to ctx.
//
// Implementations must return promptly once ctx is cancelled; the loops rely
// on that for supersession and timeouts, but they never assume it.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Response
}

// Client is the HTTP [Fetcher] used against a device.
//
// Client has no global timeout: the loops own their deadlines and cancel the
// request context instead.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new [Client].
//
// The transport keeps connections alive and negotiates HTTP/2 when the device
// is served over TLS.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	// only fails if the transport already has h2 registered
	_, _ = http2.ConfigureTransports(transport)

	return &Client{
		httpClient: &http.Client{Transport: transport},
	}
}

// NewClientWith wraps an existing [http.Client], e.g. one built for mTLS.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// Fetch performs a GET and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately. A non-2xx status is not an error here,
// callers decide what it means.
func (c *Client) Fetch(ctx context.Context, r Request) Response {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   &FetchError{Stage: StageRequest, Err: fmt.Errorf("failed to create request: %w", err)},
		}
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	if r.NoCache {
		req.Header.Set("Cache-Control", "no-cache, no-store")
		req.Header.Set("Pragma", "no-cache")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   &FetchError{Stage: StageRequest, Err: err},
		}
	}
	defer func() { _ = resp.Body.Close() }()

	limit := r.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err == nil && int64(len(body)) > limit {
		err = fmt.Errorf("body exceeds %d bytes", limit)
	}
	if err != nil {
		return Response{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Latency:     time.Since(start),
			Error:       &FetchError{Stage: StageRead, StatusCode: resp.StatusCode, Err: err},
		}
	}

	return Response{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Latency:     time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. The client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
