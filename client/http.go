package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPTransport posts payloads to a server's JSON-RPC endpoint.
type HTTPTransport struct {
	url     string
	client  *http.Client
	headers http.Header
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets the http.Client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithHeader adds a header to every request, such as Authorization.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) {
		t.headers.Add(key, value)
	}
}

// NewHTTPTransport creates a transport posting to url.
func NewHTTPTransport(url string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		url:     url,
		client:  http.DefaultClient,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip posts payload and returns the response body. A 204 reply
// yields a nil body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, payload []byte, _ bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	for key, values := range t.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
}

// Close is a no-op for HTTP.
func (t *HTTPTransport) Close() error {
	return nil
}
