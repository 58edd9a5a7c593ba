package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medflow/medinsight/pkg/errors"
)

// Fetcher downloads a source document
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads documents over HTTP with a size cap
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher with the given timeout and size limit
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url. Hosts that cannot be reached or answer with a non-2xx
// status are reported as unavailable; oversized documents as bad requests.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("invalid document url %q", url))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.UpstreamUnavailable("document host", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.UpstreamUnavailable("document host", fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.UpstreamUnavailable("document host", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.BadRequest(fmt.Sprintf("document %s exceeds %d bytes", url, f.maxBytes))
	}
	return data, nil
}
