package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// countClient talks to the visitor-count endpoint.
type countClient struct {
	url    string
	origin string
	client *http.Client
}

type countResponse struct {
	Count *int64 `json:"count"`
	Error string `json:"error"`
}

func (c *countClient) Up(ctx context.Context) (int64, error) {
	return c.do(ctx, http.MethodPost)
}

func (c *countClient) Get(ctx context.Context) (int64, error) {
	return c.do(ctx, http.MethodGet)
}

func (c *countClient) do(ctx context.Context, method string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("http.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client.Do: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("io.ReadAll: %w", err)
	}

	var cr countResponse
	if err := json.Unmarshal(b, &cr); err != nil {
		return 0, fmt.Errorf("json.Unmarshal: status=%d, %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s %s: status=%d, error=%s", method, c.url, resp.StatusCode, cr.Error)
	}
	if cr.Count == nil {
		return 0, fmt.Errorf("%s %s: missing count", method, c.url)
	}
	return *cr.Count, nil
}
