package remoteconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPFetcher pulls the configuration snapshot from an HTTP endpoint.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithHTTPFetcherClient overrides the HTTP client.
func WithHTTPFetcherClient(client *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func NewHTTPFetcher(url string, opts ...HTTPFetcherOption) (*HTTPFetcher, error) {
	if url == "" {
		return nil, fmt.Errorf("config url is required")
	}
	f := &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("build config request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("config endpoint returned %d", resp.StatusCode)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode config: %w", err)
	}
	return snapshot, nil
}

// StaticFetcher always returns the same snapshot; used when no config
// endpoint is configured.
type StaticFetcher struct {
	Snapshot Snapshot
}

func (f StaticFetcher) Fetch(context.Context) (Snapshot, error) {
	return f.Snapshot, nil
}
