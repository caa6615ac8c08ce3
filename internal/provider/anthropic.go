// Package provider adapts hosted model APIs to eino's chat model interface.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultAnthropicModel = "claude-opus-4-6"
	DefaultMaxTokens      = 1024
	DefaultMaxRetries     = 2
)

var ErrMissingAPIKey = errors.New("anthropic: API key is missing")

// AnthropicConfig describes an Anthropic chat model.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	MaxTokens   int
	// MaxRetries bounds SDK retries on retryable failures.
	MaxRetries int
}

// AnthropicChatModel implements model.BaseChatModel on the Messages API.
type AnthropicChatModel struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature *float64
}

var _ model.BaseChatModel = (*AnthropicChatModel)(nil)

// NewAnthropicChatModel builds the SDK client once; it is safe for
// concurrent use.
func NewAnthropicChatModel(cfg AnthropicConfig) (*AnthropicChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	m := &AnthropicChatModel{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if m.model == "" {
		m.model = DefaultAnthropicModel
	}
	if m.maxTokens <= 0 {
		m.maxTokens = DefaultMaxTokens
	}
	return m, nil
}

// Generate sends the conversation and returns the assistant reply. Tool use
// blocks come back as schema tool calls; executing them is up to the caller.
func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	params, err := m.buildParams(input, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude API error: %w", err)
	}

	out := &schema.Message{Role: schema.Assistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		}
	}

	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.StopReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	return out, nil
}

// Stream satisfies model.BaseChatModel by returning the complete Generate
// reply as a single chunk. The agent only calls Generate.
func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *AnthropicChatModel) buildParams(input []*schema.Message, opts ...model.Option) (anthropic.MessageNewParams, error) {
	maxTokens := m.maxTokens
	modelName := m.model
	var temperature *float32
	if m.temperature != nil {
		t := float32(*m.temperature)
		temperature = &t
	}

	common := model.GetCommonOptions(&model.Options{
		Temperature: temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(*common.Model),
		MaxTokens: int64(*common.MaxTokens),
	}
	if common.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*common.Temperature))
	}

	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case schema.User:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case schema.Assistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := call.Function.Arguments
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, json.RawMessage(args), call.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		case schema.Tool:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			return params, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}

	if len(params.Messages) == 0 {
		return params, errors.New("anthropic: no messages to send")
	}
	return params, nil
}
