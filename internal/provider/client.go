package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultHTTPTimeout bounds a single provider API call. Long-running work
// is handled by polling, not by long requests.
const defaultHTTPTimeout = 30 * time.Second

// newHTTPClient returns the http client shared by the provider clients.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// doJSON performs an HTTP request with an optional JSON body, decodes a
// JSON response into out (when out is non-nil and the response carries a
// body), and returns the HTTP status code. Transport failures are
// returned as errors with a zero status code.
func doJSON(
	ctx context.Context,
	client *http.Client,
	method, url string,
	headers map[string]string,
	body any,
	out any,
) (int, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// bearerAuth builds the Authorization header map used by most providers.
func bearerAuth(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}
