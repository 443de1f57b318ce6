// Package narrate turns a finished report into a short prose summary via an
// OpenAI-style chat-completions API. Generated text is passed through
// untouched; nothing downstream parses it.
package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Narrator produces a prose summary for a report payload.
type Narrator interface {
	Narrate(ctx context.Context, reportKind string, report any) (string, error)
}

// Client calls a chat-completions endpoint with a static bearer token.
type Client struct {
	BaseURL    string
	Model      string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(baseURL, model, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Model:   model,
		Token:   token,
		Timeout: 60 * time.Second,
	}
}

const systemPrompt = "You are a sales operations analyst. Summarize the report JSON in a few short paragraphs for a revenue leader: call out totals, trends, and deals needing attention. Do not invent numbers."

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Narrate(ctx context.Context, reportKind string, report any) (string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	reqBody := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Report kind: %s\n\n%s", reportKind, payload)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}
	u := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("narration api error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("narration api returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
