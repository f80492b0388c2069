package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	fetchTimeout = 15 * time.Second
	maxPageBytes = 8 << 20
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Fetcher loads page snapshots over HTTP into a Document.
type Fetcher struct {
	client *http.Client
}

// NewFetcher constructs a fetcher with a bounded HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: fetchTimeout}}
}

// Fetch GETs rawURL and parses the body as the current render.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", rawURL, resp.StatusCode)
	}

	// Redirects land the page elsewhere; adapters classify by the final URL.
	return NewDocument(resp.Request.URL.String(), string(body))
}

// LoadFile reads a saved snapshot from disk as the render of rawURL.
func LoadFile(path, rawURL string) (*Document, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return NewDocument(rawURL, string(body))
}
