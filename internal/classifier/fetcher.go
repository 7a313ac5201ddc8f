package classifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPImageFetcher downloads image bytes over HTTP.
type HTTPImageFetcher struct {
	client *http.Client
}

// NewHTTPImageFetcher creates a fetcher with a bounded request timeout.
func NewHTTPImageFetcher() *HTTPImageFetcher {
	return &HTTPImageFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads the image at url and returns its bytes and content type.
// A missing Content-Type header defaults to image/jpeg.
func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status fetching image: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
