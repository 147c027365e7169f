package fuzzysearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxErrorBody caps how much of a rejected response is kept for the error message.
const maxErrorBody = 512

// doGetJSON performs an authenticated GET request and unmarshals the JSON
// response into the result type. The endpoint is the path after the base
// URL, optionally with a query string (e.g. "hashes?hashes=1").
func doGetJSON[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(endpoint), nil)
	if err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("could not create request: %w", err)}
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL constructed from parsed endpoint via resolveURL
	if err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("could not send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteRejectedError{Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("could not read response body: %w", err)}
	}

	c.captureResponse(endpoint, body)

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &TransportError{Cause: fmt.Errorf("could not unmarshal response: %w", err)}
	}

	return &result, nil
}

// readErrorBody reads the start of the response body for error messages.
// Returns empty string if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the API response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	// Sanitize endpoint for filename
	name := strings.NewReplacer("/", "_", "?", "_", "=", "_", "&", "_").Replace(endpoint)
	name = strings.TrimPrefix(name, "_")
	timestamp := time.Now().Format("20060102_150405")
	name = fmt.Sprintf("%s_%s.json", name, timestamp)

	path := filepath.Join(c.captureDir, name)

	// Pretty-print JSON if possible
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
