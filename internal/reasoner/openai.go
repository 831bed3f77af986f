// OpenAI-backed Reasoner/Extractor implementation, adapted from the
// teacher's Chat Completions adapter. Tool selection uses OpenAI's function
// calling with tool_choice forced to "required" so each reasoning step
// yields exactly one tool call.
package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/relayrun/convorch/internal/toolspec"
)

type (
	// ChatClient captures the subset of the go-openai client used here.
	ChatClient interface {
		CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	}

	// OpenAIOptions configures the OpenAI adapter.
	OpenAIOptions struct {
		Model       string
		Temperature float32
		MaxTokens   int
	}

	// OpenAI implements Reasoner and Extractor via Chat Completions.
	OpenAI struct {
		chat  ChatClient
		model string
		temp  float32
		maxT  int
	}
)

// NewOpenAI builds an OpenAI-backed adapter.
func NewOpenAI(chat ChatClient, opts OpenAIOptions) (*OpenAI, error) {
	if chat == nil {
		return nil, errors.New("openai: client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return nil, errors.New("openai: model is required")
	}
	return &OpenAI{chat: chat, model: model, temp: opts.Temperature, maxT: opts.MaxTokens}, nil
}

// NewOpenAIFromAPIKey constructs an adapter using the default go-openai HTTP
// client.
func NewOpenAIFromAPIKey(apiKey string, opts OpenAIOptions) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	return NewOpenAI(openai.NewClient(apiKey), opts)
}

// Reason implements Reasoner.
func (o *OpenAI) Reason(ctx context.Context, prompt, trajectorySummary string, catalog []toolspec.CatalogEntry, userName string) (Output, error) {
	tools, err := encodeOpenAICatalog(catalog)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: reasonUserText(prompt, trajectorySummary, userName)},
		},
		Tools:      tools,
		ToolChoice: "required",
	}
	if o.temp > 0 {
		req.Temperature = o.temp
	}
	if o.maxT > 0 {
		req.MaxTokens = o.maxT
	}
	resp, err := o.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return Output{}, fmt.Errorf("openai reason: %w", err)
	}
	return translateOpenAIReason(resp)
}

// Extract implements Extractor.
func (o *OpenAI) Extract(ctx context.Context, prompt, trajectorySummary, userName string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: extractUserText(prompt, trajectorySummary, userName)},
		},
	}
	if o.temp > 0 {
		req.Temperature = o.temp
	}
	if o.maxT > 0 {
		req.MaxTokens = o.maxT
	}
	resp, err := o.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai extract: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai extract: %w: empty response", ErrMalformedOutput)
	}
	return resp.Choices[0].Message.Content, nil
}

func encodeOpenAICatalog(catalog []toolspec.CatalogEntry) ([]openai.Tool, error) {
	tools := make([]openai.Tool, 0, len(catalog)+1)
	for _, entry := range catalog {
		var params json.RawMessage
		if entry.ArgsSchemaSummary != "" {
			params = json.RawMessage(entry.ArgsSchemaSummary)
		} else {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        entry.Name,
				Description: entry.Description,
				Parameters:  params,
			},
		})
	}
	tools = append(tools, openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        finishTool,
			Description: "Conclude the turn; no further tool calls will be made.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	})
	return tools, nil
}

func translateOpenAIReason(resp openai.ChatCompletionResponse) (Output, error) {
	if len(resp.Choices) == 0 {
		return Output{}, fmt.Errorf("openai reason: %w: no choices", ErrMalformedOutput)
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return Output{}, fmt.Errorf("openai reason: %w: no tool call in response", ErrMalformedOutput)
	}
	call := msg.ToolCalls[0]
	args := map[string]any{}
	if strings.TrimSpace(call.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return Output{}, fmt.Errorf("openai reason: %w: %v", ErrMalformedOutput, err)
		}
	}
	thought := msg.Content
	if strings.TrimSpace(thought) == "" {
		thought = "(no explicit reasoning text returned)"
	}
	return Output{Thought: thought, ToolName: call.Function.Name, ToolArgs: args}, nil
}
