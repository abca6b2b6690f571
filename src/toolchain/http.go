package toolchain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxIndexSize bounds the release index body; the full go.dev index is a few MiB.
const maxIndexSize = 32 << 20

func defaultClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// get fetches Endpoint+path and returns the body of a 200 response.
func (r *Resolver) get(ctx context.Context, path, accept string) ([]byte, error) {
	url := r.Endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	client := r.Client
	if client == nil {
		client = defaultClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexSize))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return data, nil
}
