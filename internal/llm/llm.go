// Package llm dispatches problem text to one of a fixed set of completion
// providers. Each wired provider lives in its own subpackage and owns its
// request shaping and response unwrapping.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Provider identifies an external completion service.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"

	// Accepted by the request schema but not wired to a client yet.
	ProviderDeepSeek Provider = "deepseek"
	ProviderGrok     Provider = "grok"
)

// Providers is the full enumerated set accepted by request validation.
var Providers = []Provider{
	ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderDeepSeek, ProviderGrok,
}

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrNotWired        = errors.New("provider is not wired yet")
)

// Wired reports whether a dispatcher client exists for the provider.
func (p Provider) Wired() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

// ParseProvider validates a selector string against the fixed set.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Instruction is the single fixed prompt prefix sent to every provider.
const Instruction = "Provide a clear step-by-step solution to the following problem. " +
	"Show each step. Do not add any commentary beyond the solution itself."

// NoResponsePlaceholder is returned when a provider answers with no text.
const NoResponsePlaceholder = "The provider returned an empty response."

// Completion is one provider answer plus whatever token accounting the API reported.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client is one wired provider.
type Client interface {
	Name() string
	Complete(ctx context.Context, text string) (Completion, error)
}

// Dispatcher routes to exactly one client per wired provider.
type Dispatcher struct {
	clients map[Provider]Client
}

func NewDispatcher(openai, anthropic, gemini Client) *Dispatcher {
	return &Dispatcher{clients: map[Provider]Client{
		ProviderOpenAI:    openai,
		ProviderAnthropic: anthropic,
		ProviderGemini:    gemini,
	}}
}

// Complete forwards text to the selected provider. Transport and API errors
// are logged with detail and surfaced as a generic per-provider failure; there
// are no retries.
func (d *Dispatcher) Complete(ctx context.Context, p Provider, text string) (Completion, error) {
	cl, ok := d.clients[p]
	if !ok || cl == nil {
		if _, err := ParseProvider(string(p)); err != nil {
			return Completion{}, err
		}
		return Completion{}, fmt.Errorf("%w: %s", ErrNotWired, p)
	}
	out, err := cl.Complete(ctx, text)
	if err != nil {
		logrus.WithError(err).WithField("provider", p).Error("provider call failed")
		return Completion{}, fmt.Errorf("failed to process with %s", p)
	}
	return out, nil
}
