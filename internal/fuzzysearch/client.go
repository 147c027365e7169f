// Package fuzzysearch is a client for the FuzzySearch reverse image index.
package fuzzysearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/ranking"
)

// Result is one completed lookup: candidates ranked against the query.
type Result struct {
	Query    fingerprint.Fingerprint
	Ranked   ranking.ResultSet[File]
	Duration time.Duration
}

// Files returns the candidates in ranked order with their distances filled in.
func (r *Result) Files() []File {
	all := r.Ranked.All()
	files := make([]File, len(all))
	for i, m := range all {
		files[i] = m.Item
	}
	return files
}

// Lookuper looks up candidates for a fingerprint.
type Lookuper interface {
	Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*Result, error)
}

// Client queries the remote index.
type Client struct {
	parsedURL  *url.URL
	apiKey     string
	threshold  uint64
	httpClient *http.Client
	captureDir string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithThreshold sets the bucket threshold used to classify results.
func WithThreshold(threshold uint64) Option {
	return func(c *Client) {
		c.threshold = threshold
	}
}

// NewClient creates a client for the index at endpoint, authenticated with apiKey.
func NewClient(endpoint, apiKey string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("fuzzysearch endpoint is required")
	}
	parsed, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid fuzzysearch URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid fuzzysearch URL %q: missing scheme or host", endpoint)
	}

	c := &Client{
		parsedURL:  parsed,
		apiKey:     apiKey,
		threshold:  ranking.DefaultThreshold,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Threshold returns the bucket threshold the client ranks with.
func (c *Client) Threshold() uint64 {
	return c.threshold
}

// resolveURL builds a full URL from the base URL and an endpoint that may
// carry a query string.
func (c *Client) resolveURL(endpoint string) string {
	if pathPart, query, ok := strings.Cut(endpoint, "?"); ok {
		result := c.parsedURL.JoinPath(pathPart)
		result.RawQuery = query
		return result.String()
	}
	return c.parsedURL.JoinPath(endpoint).String()
}

// Lookup sends one search request for fp and ranks the returned candidates.
// Errors are *RemoteRejectedError or *TransportError; nothing is retried.
func (c *Client) Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*Result, error) {
	start := time.Now()

	query := url.Values{"hashes": []string{fp.String()}}
	files, err := doGetJSON[[]File](ctx, c, "hashes?"+query.Encode())
	if err != nil {
		var re *RemoteRejectedError
		if errors.As(err, &re) {
			re.Duration = time.Since(start)
		}
		return nil, err
	}

	ranked := ranking.Rank(fp, *files, c.threshold)
	annotateDistances(ranked.Good)
	annotateDistances(ranked.Bad)

	return &Result{
		Query:    fp,
		Ranked:   ranked,
		Duration: time.Since(start),
	}, nil
}

// annotateDistances copies computed distances onto the files.
func annotateDistances(matches []ranking.Match[File]) {
	for i := range matches {
		if !matches[i].Known {
			matches[i].Item.Distance = nil
			continue
		}
		d := matches[i].Distance
		matches[i].Item.Distance = &d
	}
}
