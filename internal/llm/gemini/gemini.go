// Package gemini wraps the official generative-ai-go SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"taskmate/internal/llm"
)

type Client struct {
	apiKey    string
	model     string
	maxTokens int
}

func New(apiKey, model string, maxTokens int) *Client {
	return &Client{
		apiKey:    strings.TrimSpace(apiKey),
		model:     strings.TrimSpace(model),
		maxTokens: maxTokens,
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Complete(ctx context.Context, text string) (llm.Completion, error) {
	if c.apiKey == "" {
		return llm.Completion{}, fmt.Errorf("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return llm.Completion{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(c.model)
	if m == nil {
		return llm.Completion{}, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: ptrInt32(int32(c.maxTokens)),
	}

	resp, err := m.GenerateContent(ctx, genai.Text(llm.Instruction+"\n\n"+text))
	if err != nil {
		return llm.Completion{}, err
	}

	var out llm.Completion
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break // first candidate only
	}
	if strings.TrimSpace(sb.String()) == "" {
		out.Text = llm.NoResponsePlaceholder
		return out, nil
	}
	out.Text = sb.String()
	return out, nil
}

func ptrInt32(v int32) *int32 { return &v }
