// Package anthropic calls the Anthropic Messages API directly over HTTP.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskmate/internal/llm"
	"taskmate/internal/util"
)

const (
	endpoint   = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
)

type Client struct {
	apiKey    string
	model     string
	maxTokens int
	httpc     *http.Client
}

func New(apiKey, model string, maxTokens int) *Client {
	return &Client{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		httpc:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Complete(ctx context.Context, text string) (llm.Completion, error) {
	if c.apiKey == "" {
		return llm.Completion{}, fmt.Errorf("ANTHROPIC_API_KEY is empty")
	}

	body := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"messages": []any{
			map[string]any{"role": "user", "content": llm.Instruction + "\n\n" + text},
		},
	}
	payload, _ := json.Marshal(body)

	req, _ := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return llm.Completion{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return llm.Completion{}, fmt.Errorf("anthropic %d: %s", resp.StatusCode, util.Truncate(string(x), 512))
	}

	var raw struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return llm.Completion{}, err
	}

	out := llm.Completion{
		PromptTokens:     raw.Usage.InputTokens,
		CompletionTokens: raw.Usage.OutputTokens,
	}
	for _, c := range raw.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			out.Text = c.Text
			return out, nil
		}
	}
	out.Text = llm.NoResponsePlaceholder
	return out, nil
}
