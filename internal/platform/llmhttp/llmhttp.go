// Package llmhttp holds the HTTP plumbing shared by the JSON-over-HTTP
// provider adapters.
package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// NewClient returns a pooled HTTP client whose requests are bounded by timeout.
func NewClient(timeout time.Duration) *http.Client {
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = timeout
	return c
}

// Response is the raw outcome of a JSON request.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// PostJSON encodes in as the request body and returns the response without
// interpreting it. Transport failures are returned as errors; non-2xx
// statuses are not.
func PostJSON(ctx context.Context, client *http.Client, url string, header http.Header, in any) (*Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}
