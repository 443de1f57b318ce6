// Package crm is a thin client for the CRM's REST API: pipelines, deal
// search, and owners. It fetches raw records for a snapshot; all analysis
// happens elsewhere.
package crm

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

	"github.com/sirupsen/logrus"

	"dealscope/internal/domain"
)

const searchPageSize = 100

// Client is a minimal CRM HTTP API client authenticating with a static
// bearer token. No retry or backoff beyond the request timeout.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Log        logrus.FieldLogger
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Timeout: 30 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm api error: status=%d body=%s", e.StatusCode, e.Body)
}

type pipelineResult struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Stages []struct {
		ID           string `json:"id"`
		Label        string `json:"label"`
		DisplayOrder int    `json:"displayOrder"`
		Metadata     struct {
			Probability string `json:"probability"`
		} `json:"metadata"`
	} `json:"stages"`
}

// ListPipelines returns every deal pipeline with its stages.
func (c *Client) ListPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	var resp struct {
		Results []pipelineResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "crm/v3/pipelines/deals", nil, &resp); err != nil {
		return nil, err
	}
	pipelines := make([]domain.Pipeline, 0, len(resp.Results))
	for _, p := range resp.Results {
		pipeline := domain.Pipeline{ID: p.ID, Label: p.Label}
		for _, s := range p.Stages {
			var prob float64
			fmt.Sscanf(s.Metadata.Probability, "%f", &prob)
			pipeline.Stages = append(pipeline.Stages, domain.Stage{
				ID:          s.ID,
				PipelineID:  p.ID,
				Label:       s.Label,
				Ordinal:     s.DisplayOrder,
				Probability: prob,
			})
		}
		pipelines = append(pipelines, pipeline)
	}
	return pipelines, nil
}

type dealResult struct {
	ID         string            `json:"id"`
	Properties domain.Properties `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type searchPage struct {
	Total   int          `json:"total"`
	Results []dealResult `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// SearchDeals pages through every deal of a pipeline, requesting the named
// properties. An empty pipelineID searches all pipelines.
func (c *Client) SearchDeals(ctx context.Context, pipelineID string, properties []string) ([]domain.Deal, error) {
	var deals []domain.Deal
	after := ""
	for {
		body := map[string]any{
			"properties": properties,
			"limit":      searchPageSize,
		}
		if pipelineID != "" {
			body["filterGroups"] = []any{map[string]any{
				"filters": []any{map[string]any{
					"propertyName": domain.PropPipeline,
					"operator":     "EQ",
					"value":        pipelineID,
				}},
			}}
		}
		if after != "" {
			body["after"] = after
		}
		var page searchPage
		if err := c.do(ctx, http.MethodPost, "crm/v3/objects/deals/search", body, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			deals = append(deals, domain.Deal{
				ID:         r.ID,
				Properties: r.Properties,
				CreatedAt:  r.CreatedAt,
				UpdatedAt:  r.UpdatedAt,
			})
		}
		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		after = page.Paging.Next.After
	}
	if c.Log != nil {
		c.Log.WithField("deals", len(deals)).Debug("deal search complete")
	}
	return deals, nil
}

type ownerResult struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ListOwners pages through the portal's deal owners.
func (c *Client) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	var owners []domain.Owner
	after := ""
	for {
		endpoint := "crm/v3/owners?limit=100"
		if after != "" {
			endpoint += "&after=" + url.QueryEscape(after)
		}
		var page struct {
			Results []ownerResult `json:"results"`
			Paging  *struct {
				Next struct {
					After string `json:"after"`
				} `json:"next"`
			} `json:"paging"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, o := range page.Results {
			owners = append(owners, domain.Owner{
				ID:        o.ID,
				Email:     o.Email,
				FirstName: o.FirstName,
				LastName:  o.LastName,
			})
		}
		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		after = page.Paging.Next.After
	}
	return owners, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
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
