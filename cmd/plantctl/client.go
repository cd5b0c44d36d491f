package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// apiClient is a thin REST client over the plantpal HTTP API.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &apiClient{http: c}
}

func (c *apiClient) do(ctx context.Context, method, path string, query map[string]string, body interface{}) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

func (c *apiClient) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	return c.do(ctx, resty.MethodGet, path, query, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.do(ctx, resty.MethodPost, path, nil, body)
}

func (c *apiClient) delete(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, resty.MethodDelete, path, nil, nil)
}
