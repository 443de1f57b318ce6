// Package dealscopesdk is a minimal client for the Dealscope HTTP API.
package dealscopesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Dealscope server. BearerToken is a JWT signed with the
// server's secret; leave it empty against an unauthenticated server.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	FetchedAt time.Time `json:"fetched_at"`
	DealCount int       `json:"deal_count"`
}

// Event is one entry in the server's run log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

// Report payloads are returned as raw JSON; decode into your own types or
// inspect generically. The shapes match the CLI's --json output.
type Report = json.RawMessage

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Healthz checks server liveness.
func (c *Client) Healthz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "v0/healthz", nil, nil)
}

// HygieneReport fetches the deal completeness report.
func (c *Client) HygieneReport(ctx context.Context) (Report, error) {
	return c.report(ctx, "reports/hygiene")
}

// AgingReport fetches the stage aging report.
func (c *Client) AgingReport(ctx context.Context) (Report, error) {
	return c.report(ctx, "reports/aging")
}

// QuarterlyForecast fetches the quarterly revenue forecast.
func (c *Client) QuarterlyForecast(ctx context.Context) (Report, error) {
	return c.report(ctx, "reports/forecast/quarterly")
}

// WeeklyForecast fetches the weekly pipeline forecast.
func (c *Client) WeeklyForecast(ctx context.Context) (Report, error) {
	return c.report(ctx, "reports/forecast/weekly")
}

// Sync asks the server to pull a fresh snapshot from the CRM.
func (c *Client) Sync(ctx context.Context) (SnapshotInfo, error) {
	var resp SnapshotInfo
	err := c.do(ctx, http.MethodPost, "v0/sync", nil, &resp)
	return resp, err
}

// Snapshots lists stored snapshots, newest first.
func (c *Client) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	var resp struct {
		Items []SnapshotInfo `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/snapshots", nil, &resp)
	return resp.Items, err
}

// Events returns recent run events, optionally filtered by type.
func (c *Client) Events(ctx context.Context, limit int, evtType string) ([]Event, error) {
	endpoint := "v0/events"
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if evtType != "" {
		params.Set("type", evtType)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) report(ctx context.Context, path string) (Report, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "v0/"+path, nil, &raw)
	return Report(raw), err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
