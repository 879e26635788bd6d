// Package llmprovider implements the Provider Adapter (C12): a thin switch
// over two known reply shapes, OpenRouter/OpenAI-compatible
// (choices[0].message.content) and Anthropic (content[0].text), selected
// per spec.md §4.6's provider-selection rule.
//
// Grounded on the wider pack's go-openai usage pattern in
// internal/application/executor/node_executors.go (client construction,
// ChatCompletionRequest shape), extended with a second adapter over
// anthropics/anthropic-sdk-go for the Anthropic shape — a dependency no
// teacher file uses but that the pack's go.mod corpus (jordigilh-kubernaut)
// names as the idiomatic choice for this SDK.
package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// Provider names recognized by Select.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

// ErrEmptyReply is returned when the provider returns a 2xx response with
// no usable text after the caller's retry.
var ErrEmptyReply = errors.New("llmprovider: empty reply from model")

// CompletionRequest is the provider-agnostic request shape.
type CompletionRequest struct {
	Model       string
	SystemPrompt string
	Message     string
	MaxTokens   int
	Temperature float32
}

// Completer is implemented by both provider adapters.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Select chooses a provider per spec.md §4.6 "Provider selection": an
// explicit apiConfig.provider wins; else an Anthropic-shaped key prefix
// (claude-* or sk-ant-*) selects Anthropic; else OpenRouter is the default.
func Select(explicitProvider, apiKey string) string {
	if explicitProvider != "" {
		return explicitProvider
	}
	if strings.HasPrefix(apiKey, "sk-ant-") || strings.HasPrefix(apiKey, "claude-") {
		return ProviderAnthropic
	}
	return ProviderOpenRouter
}

// NewCompleter constructs the Completer for the selected provider.
func NewCompleter(provider, apiKey string, timeout time.Duration) Completer {
	switch provider {
	case ProviderAnthropic:
		return &anthropicCompleter{client: anthropic.NewClient(option.WithAPIKey(apiKey)), timeout: timeout}
	default:
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = "https://openrouter.ai/api/v1"
		return &openRouterCompleter{client: openai.NewClientWithConfig(cfg), timeout: timeout}
	}
}

type openRouterCompleter struct {
	client  *openai.Client
	timeout time.Duration
}

// Complete implements Completer for the OpenRouter/OpenAI-compatible shape
// (choices[0].message.content).
func (o *openRouterCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openrouter completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicCompleter struct {
	client  anthropic.Client
	timeout time.Duration
}

// Complete implements Completer for the Anthropic shape (content[0].text).
func (a *anthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			if block.Text == "" {
				continue
			}
			return block.Text, nil
		}
	}
	return "", ErrEmptyReply
}
