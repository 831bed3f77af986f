package reasoner_test

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/relayrun/convorch/internal/reasoner"
	"github.com/relayrun/convorch/internal/toolspec"
)

type stubChatClient struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (s stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func TestOpenAIReasonTranslatesToolCall(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Content: "checking weather",
				ToolCalls: []openai.ToolCall{{
					Function: openai.FunctionCall{Name: "weather_forecast", Arguments: `{"location":"Oslo"}`},
				}},
			},
		}},
	}
	o, err := reasoner.NewOpenAI(stubChatClient{resp: resp}, reasoner.OpenAIOptions{Model: "gpt-x"})
	require.NoError(t, err)

	out, err := o.Reason(context.Background(), "weather?", "", []toolspec.CatalogEntry{
		{Name: "weather_forecast", Description: "forecast"},
	}, "")
	require.NoError(t, err)
	require.Equal(t, "weather_forecast", out.ToolName)
	require.Equal(t, "Oslo", out.ToolArgs["location"])
}

func TestOpenAIReasonRejectsNoToolCall(t *testing.T) {
	resp := openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hi"}}}}
	o, err := reasoner.NewOpenAI(stubChatClient{resp: resp}, reasoner.OpenAIOptions{Model: "gpt-x"})
	require.NoError(t, err)

	_, err = o.Reason(context.Background(), "weather?", "", nil, "")
	require.ErrorIs(t, err, reasoner.ErrMalformedOutput)
}

func TestOpenAIExtractReturnsText(t *testing.T) {
	resp := openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Oslo is snowy."}}}}
	o, err := reasoner.NewOpenAI(stubChatClient{resp: resp}, reasoner.OpenAIOptions{Model: "gpt-x"})
	require.NoError(t, err)

	answer, err := o.Extract(context.Background(), "weather?", "", "")
	require.NoError(t, err)
	require.Equal(t, "Oslo is snowy.", answer)
}
