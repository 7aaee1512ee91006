package artwork

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxPosterBytes caps a fetched poster at 10 MiB.
const maxPosterBytes = 10 << 20

// HTTPFetcher retrieves show posters from the archive's image service.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher against baseURL; the poster URL is
// <baseURL>/<showID>.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchPoster implements Fetcher.
func (f *HTTPFetcher) FetchPoster(ctx context.Context, showID string) ([]byte, error) {
	url := f.baseURL + "/" + showID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoArtwork
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching poster: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return nil, fmt.Errorf("reading poster body: %w", err)
	}
	if DetectMimeType(data) == "application/octet-stream" {
		return nil, ErrNoArtwork
	}
	return data, nil
}
