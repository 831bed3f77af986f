package convoworkflow_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/relayrun/convorch/internal/convoworkflow"
	"github.com/relayrun/convorch/internal/workflowstate"
)

func baseConfig() convoworkflow.CoreConfig {
	return convoworkflow.CoreConfig{MaxIterations: 10}
}

// TestScenarioA_SingleToolHappyPath drives spec Scenario A end-to-end
// through the real workflow function: one prompt, one tool call, finish.
func TestScenarioA_SingleToolHappyPath(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	env.OnActivity(convoworkflow.ReasonerActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ReasonerActivityOutput{
			Thought:  "look up weather",
			ToolName: "weather_forecast",
			ToolArgs: map[string]any{"location": "Paris"},
		}, nil).Once()
	env.OnActivity(convoworkflow.ReasonerActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ReasonerActivityOutput{ToolName: "finish"}, nil).Once()
	env.OnActivity(convoworkflow.ToolActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ToolActivityOutput{Observation: "WX(Paris,7)"}, nil).Once()
	env.OnActivity(convoworkflow.ExtractActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ExtractActivityOutput{Answer: "It will be sunny in Paris."}, nil).Once()

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalPrompt, "What is the weather in Paris?")
	}, 0)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalEndChat, nil)
	}, 0)

	env.ExecuteWorkflow(convoworkflow.ConversationWorkflow, convoworkflow.StartInput{Config: baseConfig()})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflowstate.FullState
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Len(t, result.Messages, 1)
	require.Equal(t, "It will be sunny in Paris.", result.Messages[0].AgentMessage)
	require.Equal(t, []string{"weather_forecast"}, result.Messages[0].ToolsUsed)
	require.True(t, result.ChatEnded)

	env.AssertExpectations(t)
}

// TestScenarioD_IterationCapWithoutFinish drives spec Scenario D: the
// reasoner never emits "finish", so the loop runs to cfg.MaxIterations and
// extraction still proceeds with whatever trajectory exists.
func TestScenarioD_IterationCapWithoutFinish(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	env.OnActivity(convoworkflow.ReasonerActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ReasonerActivityOutput{
			ToolName: "weather_forecast",
			ToolArgs: map[string]any{"location": "Oslo"},
		}, nil)
	env.OnActivity(convoworkflow.ToolActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ToolActivityOutput{Observation: "WX(Oslo,7)"}, nil)
	env.OnActivity(convoworkflow.ExtractActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ExtractActivityOutput{Answer: "best guess: Oslo is cold"}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalPrompt, "weather?")
	}, 0)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalEndChat, nil)
	}, 0)

	cfg := baseConfig()
	cfg.MaxIterations = 3
	env.ExecuteWorkflow(convoworkflow.ConversationWorkflow, convoworkflow.StartInput{Config: cfg})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflowstate.FullState
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Len(t, result.Messages, 1)
	require.Empty(t, result.Messages[0].Error)
	require.Equal(t, []string{"weather_forecast"}, result.Messages[0].ToolsUsed)
}

// TestDuplicatePromptsProcessInOrder covers §8.3 "two rapid prompt signals
// enqueue two turns; both are processed in order".
func TestDuplicatePromptsProcessInOrder(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	env.OnActivity(convoworkflow.ReasonerActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ReasonerActivityOutput{ToolName: "finish"}, nil)
	env.OnActivity(convoworkflow.ExtractActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ExtractActivityOutput{Answer: "ack"}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalPrompt, "first")
		env.SignalWorkflow(convoworkflow.SignalPrompt, "second")
	}, 0)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalEndChat, nil)
	}, 0)

	env.ExecuteWorkflow(convoworkflow.ConversationWorkflow, convoworkflow.StartInput{Config: baseConfig()})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflowstate.FullState
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Len(t, result.Messages, 2)
	require.Equal(t, "first", result.Messages[0].UserMessage)
	require.Equal(t, "second", result.Messages[1].UserMessage)
}

// TestEndChatDuringProcessingDoesNotInterruptTurn covers §8.3's
// end_chat-timing boundary behavior.
func TestEndChatDuringProcessingDoesNotInterruptTurn(t *testing.T) {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()

	env.OnActivity(convoworkflow.ReasonerActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ReasonerActivityOutput{ToolName: "finish"}, nil)
	env.OnActivity(convoworkflow.ExtractActivityName, mock.Anything, mock.Anything).
		Return(convoworkflow.ExtractActivityOutput{Answer: "done"}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(convoworkflow.SignalPrompt, "hello")
		env.SignalWorkflow(convoworkflow.SignalEndChat, nil)
	}, 0)

	env.ExecuteWorkflow(convoworkflow.ConversationWorkflow, convoworkflow.StartInput{Config: baseConfig()})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result workflowstate.FullState
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Len(t, result.Messages, 1)
	require.False(t, result.IsProcessing)
	require.True(t, result.ChatEnded)
}
