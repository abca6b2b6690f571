package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// api is the request plumbing shared by the platform clients.
type api struct {
	forge  Provider
	client *http.Client
	auth   func(*http.Request)
}

func (a *api) httpClient() *http.Client {
	if a.client != nil {
		return a.client
	}
	return http.DefaultClient
}

// doJSON sends body as JSON and decodes a JSON response into result.
func (a *api) doJSON(ctx context.Context, method, url string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.do(req, result)
}

// do sends req with credentials and decodes a JSON response into result.
func (a *api) do(req *http.Request, result any) error {
	a.auth(req)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return &APIError{
			Forge:      a.forge,
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if result != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, result)
	}
	return nil
}
