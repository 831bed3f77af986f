// Anthropic-backed Reasoner/Extractor implementation. Adapted from the
// teacher's Messages-API client adapter: the tool catalog is translated into
// Anthropic tool definitions, plus a synthetic "finish" tool representing
// the loop's terminal sentinel, and tool_choice is forced to "any" so every
// reasoning step yields exactly one tool_name.
package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/relayrun/convorch/internal/toolspec"
	"github.com/relayrun/convorch/internal/trajectory"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK client the
	// adapter uses, so tests can substitute a stub.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// AnthropicOptions configures the Anthropic adapter.
	AnthropicOptions struct {
		Model       string
		MaxTokens   int64
		Temperature float64
	}

	// Anthropic implements Reasoner and Extractor on top of Claude Messages.
	Anthropic struct {
		msg   MessagesClient
		model string
		maxT  int64
		temp  float64
	}
)

const finishTool = trajectory.Finish

// NewAnthropic builds an Anthropic-backed adapter.
func NewAnthropic(msg MessagesClient, opts AnthropicOptions) (*Anthropic, error) {
	if msg == nil {
		return nil, errors.New("anthropic: client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{msg: msg, model: opts.Model, maxT: maxTokens, temp: opts.Temperature}, nil
}

// NewAnthropicFromAPIKey constructs an adapter using the default Anthropic
// HTTP client authenticated with apiKey.
func NewAnthropicFromAPIKey(apiKey string, opts AnthropicOptions) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&client.Messages, opts)
}

// Reason implements Reasoner.
func (a *Anthropic) Reason(ctx context.Context, prompt, trajectorySummary string, catalog []toolspec.CatalogEntry, userName string) (Output, error) {
	tools, err := encodeCatalog(catalog)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxT,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(reasonUserText(prompt, trajectorySummary, userName)))},
		Tools:     tools,
		ToolChoice: sdk.ToolChoiceUnionParam{
			OfAny: &sdk.ToolChoiceAnyParam{},
		},
	}
	if a.temp > 0 {
		params.Temperature = sdk.Float(a.temp)
	}
	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return Output{}, fmt.Errorf("anthropic reason: %w", err)
	}
	return translateReasonOutput(msg)
}

// Extract implements Extractor: a plain completion request with no tools.
func (a *Anthropic) Extract(ctx context.Context, prompt, trajectorySummary, userName string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxT,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(extractUserText(prompt, trajectorySummary, userName)))},
	}
	if a.temp > 0 {
		params.Temperature = sdk.Float(a.temp)
	}
	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic extract: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic extract: %w: no text in response", ErrMalformedOutput)
}

func reasonUserText(prompt, summary, userName string) string {
	who := userName
	if who == "" {
		who = "user"
	}
	if summary == "" {
		return fmt.Sprintf("%s asked: %s\n\nDecide the next tool to call, or call %q when done.", who, prompt, finishTool)
	}
	return fmt.Sprintf("%s asked: %s\n\nTrajectory so far:\n%s\n\nDecide the next tool to call, or call %q when done.", who, prompt, summary, finishTool)
}

func extractUserText(prompt, summary, userName string) string {
	who := userName
	if who == "" {
		who = "user"
	}
	return fmt.Sprintf("%s asked: %s\n\nTrajectory:\n%s\n\nWrite the final answer.", who, prompt, summary)
}

func encodeCatalog(catalog []toolspec.CatalogEntry) ([]sdk.ToolUnionParam, error) {
	tools := make([]sdk.ToolUnionParam, 0, len(catalog)+1)
	for _, entry := range catalog {
		schema, err := parseSchema(entry.ArgsSchemaSummary)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", entry.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, entry.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(entry.Description)
		}
		tools = append(tools, u)
	}
	finish := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{}, finishTool)
	if finish.OfTool != nil {
		finish.OfTool.Description = sdk.String("Conclude the turn; no further tool calls will be made.")
	}
	tools = append(tools, finish)
	return tools, nil
}

func parseSchema(summary string) (sdk.ToolInputSchemaParam, error) {
	if summary == "" {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(summary), &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateReasonOutput(msg *sdk.Message) (Output, error) {
	if msg == nil {
		return Output{}, fmt.Errorf("anthropic reason: %w: nil response", ErrMalformedOutput)
	}
	var out Output
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if out.Thought == "" {
				out.Thought = block.Text
			}
		case "tool_use":
			if out.ToolName != "" {
				continue // only the first tool_use block governs this iteration
			}
			out.ToolName = block.Name
			var args map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return Output{}, fmt.Errorf("anthropic reason: %w: %v", ErrMalformedOutput, err)
				}
			}
			out.ToolArgs = args
		}
	}
	if out.ToolName == "" {
		return Output{}, fmt.Errorf("anthropic reason: %w: no tool_use block in response", ErrMalformedOutput)
	}
	if out.Thought == "" {
		out.Thought = "(no explicit reasoning text returned)"
	}
	return out, nil
}
