// Package sdk is a small Go client for the zonesnap HTTP API. It covers
// the operational surface: triggering runs and backfills, reading day
// documents, and exchanging day archives.
package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"zonesnap/pkg/export"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/run"
)

// ClientConfig holds configuration for the zonesnap client.
type ClientConfig struct {
	// Endpoint is the server base URL, e.g. "http://localhost:8080".
	Endpoint string

	// Timeout applies per request. Backfills of dense days can take a
	// while; the default is generous.
	Timeout time.Duration
}

// Client talks to a zonesnap server.
type Client struct {
	base string
	http *http.Client
}

// New creates a zonesnap API client.
func New(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:8080"
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &Client{
		base: cfg.Endpoint,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// TriggerRun starts an hourly aggregation run. An empty scheme runs
// every configured scheme.
func (c *Client) TriggerRun(ctx context.Context, scheme string) ([]run.Result, error) {
	body := map[string]string{}
	if scheme != "" {
		body["scheme"] = scheme
	}

	var results []run.Result
	if err := c.post(ctx, "/v1/runs", body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Backfill rebuilds the (date, scheme) day document from stored raw
// snapshots.
func (c *Client) Backfill(ctx context.Context, date, scheme string, keys []string) (*run.Result, error) {
	body := map[string]interface{}{
		"date":   date,
		"scheme": scheme,
	}
	if len(keys) > 0 {
		body["keys"] = keys
	}

	var result run.Result
	if err := c.post(ctx, "/v1/backfill", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Snapshot fetches the day document for (date, scheme).
func (c *Client) Snapshot(ctx context.Context, date, scheme string) (occupancy.DayDocument, error) {
	var doc occupancy.DayDocument
	if err := c.get(ctx, "/v1/snapshots/"+date+"/"+scheme, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ExportDay downloads the date's raw snapshot archive into w.
func (c *Client) ExportDay(ctx context.Context, w io.Writer, date string) error {
	resp, err := c.do(ctx, http.MethodGet, "/v1/export/"+date, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return nil
}

// ImportDay uploads a day archive from r.
func (c *Client) ImportDay(ctx context.Context, r io.Reader) (*export.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/import", r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result export.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// The server sends {"error","message"} bodies; surface the message
	// when one is present.
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}
