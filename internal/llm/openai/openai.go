package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"taskmate/internal/llm"
)

type Client struct {
	c         *openai.Client
	apiKey    string
	model     string
	maxTokens int
}

func New(apiKey, model string, maxTokens int) *Client {
	return &Client{
		c:         openai.NewClient(apiKey),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Complete(ctx context.Context, text string) (llm.Completion, error) {
	if c.apiKey == "" {
		return llm.Completion{}, fmt.Errorf("OPENAI_API_KEY is empty")
	}
	resp, err := c.c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: llm.Instruction + "\n\n" + text,
			},
		},
	})
	if err != nil {
		return llm.Completion{}, err
	}

	out := llm.Completion{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		out.Text = llm.NoResponsePlaceholder
		return out, nil
	}
	out.Text = resp.Choices[0].Message.Content
	return out, nil
}
