package openneuro

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lossless/internal/config"
)

const userAgent = "lossless/0.4.0"

// File describes one entry of a dataset snapshot. Filename is the path
// relative to the dataset root with forward slashes.
type File struct {
	ID       string
	Filename string
	Size     int64
	URLs     []string
}

// Client talks to the OpenNeuro GraphQL API and the file CDN behind it.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	downloadClient *http.Client
	maxRetries     int
	retryDelay     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the client used for API queries.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDownloadClient overrides the client used for file bodies.
func WithDownloadClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.downloadClient = client
		}
	}
}

// WithRequestTimeout sets the timeout for API queries.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithDownloadTimeout sets the timeout for a single file download.
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.downloadClient.Timeout = d
		}
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// New creates an OpenNeuro client against the given GraphQL endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("openneuro endpoint required")
	}
	client := &Client{
		endpoint:       endpoint,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		downloadClient: &http.Client{Timeout: 15 * time.Minute},
		maxRetries:     3,
		retryDelay:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig creates a client using the endpoint, timeouts, and retry
// policy from the application config.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	base := []Option{
		WithRequestTimeout(time.Duration(cfg.OpenNeuro.RequestTimeout) * time.Second),
		WithDownloadTimeout(time.Duration(cfg.OpenNeuro.DownloadTimeout) * time.Second),
		WithMaxRetries(cfg.OpenNeuro.MaxRetries),
	}
	return New(cfg.OpenNeuro.Endpoint, append(base, opts...)...)
}

const latestSnapshotQuery = `query latestSnapshot($datasetId: ID!) {
  dataset(id: $datasetId) { latestSnapshot { tag } }
}`

const snapshotFilesQuery = `query snapshotFiles($datasetId: ID!, $tag: String!, $tree: String) {
  snapshot(datasetId: $datasetId, tag: $tag) {
    files(tree: $tree) { id filename size directory urls }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type fileEntry struct {
	ID        string   `json:"id"`
	Filename  string   `json:"filename"`
	Size      int64    `json:"size"`
	Directory bool     `json:"directory"`
	URLs      []string `json:"urls"`
}

// LatestSnapshot resolves the most recent snapshot tag of a dataset.
func (c *Client) LatestSnapshot(ctx context.Context, datasetID string) (string, error) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return "", errors.New("dataset id must not be empty")
	}
	var payload struct {
		Dataset struct {
			LatestSnapshot struct {
				Tag string `json:"tag"`
			} `json:"latestSnapshot"`
		} `json:"dataset"`
	}
	err := c.withRetry(ctx, "resolve latest snapshot", func() error {
		return c.query(ctx, latestSnapshotQuery, map[string]any{"datasetId": datasetID}, &payload)
	})
	if err != nil {
		return "", err
	}
	tag := strings.TrimSpace(payload.Dataset.LatestSnapshot.Tag)
	if tag == "" {
		return "", fmt.Errorf("dataset %s has no snapshots", datasetID)
	}
	return tag, nil
}

// ListFiles walks the snapshot file tree and returns every regular file with
// its dataset-relative path.
func (c *Client) ListFiles(ctx context.Context, datasetID, tag string) ([]File, error) {
	datasetID = strings.TrimSpace(datasetID)
	if datasetID == "" {
		return nil, errors.New("dataset id must not be empty")
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, errors.New("snapshot tag must not be empty")
	}

	type dirRef struct {
		id     string
		prefix string
	}
	pending := []dirRef{{}}
	var out []File
	for len(pending) > 0 {
		dir := pending[0]
		pending = pending[1:]

		entries, err := c.listTree(ctx, datasetID, tag, dir.id)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			name := entry.Filename
			if dir.prefix != "" {
				name = dir.prefix + "/" + name
			}
			if entry.Directory {
				pending = append(pending, dirRef{id: entry.ID, prefix: name})
				continue
			}
			out = append(out, File{
				ID:       entry.ID,
				Filename: name,
				Size:     entry.Size,
				URLs:     entry.URLs,
			})
		}
	}
	return out, nil
}

func (c *Client) listTree(ctx context.Context, datasetID, tag, tree string) ([]fileEntry, error) {
	variables := map[string]any{
		"datasetId": datasetID,
		"tag":       tag,
	}
	if tree != "" {
		variables["tree"] = tree
	}
	var payload struct {
		Snapshot struct {
			Files []fileEntry `json:"files"`
		} `json:"snapshot"`
	}
	err := c.withRetry(ctx, "list snapshot files", func() error {
		return c.query(ctx, snapshotFilesQuery, variables, &payload)
	})
	if err != nil {
		return nil, err
	}
	return payload.Snapshot.Files, nil
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openneuro api returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode openneuro response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return fmt.Errorf("openneuro api error: %s", payload.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(payload.Data, out); err != nil {
			return fmt.Errorf("decode openneuro data: %w", err)
		}
	}
	return nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, attempts, lastErr)
}
