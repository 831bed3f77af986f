package react_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayrun/convorch/internal/react"
	"github.com/relayrun/convorch/internal/reasoner"
	"github.com/relayrun/convorch/internal/toolspec"
	"github.com/relayrun/convorch/internal/trajectory"
)

func weatherRegistry(t *testing.T) *toolspec.Registry {
	t.Helper()
	r := toolspec.NewRegistry()
	require.NoError(t, r.Register(toolspec.Descriptor{
		Name:        "weather_forecast",
		Description: "forecast",
		ArgsSchema: []byte(`{
			"type": "object",
			"properties": {"location": {"type": "string"}, "days": {"type": "integer", "default": 7}},
			"required": ["location"]
		}`),
		Kind: toolspec.Local,
	}))
	return r
}

func sequencedReason(outputs ...reasoner.Output) react.ReasonFunc {
	i := 0
	return func(ctx context.Context, prompt, summary string, catalog []toolspec.CatalogEntry, userName string) (reasoner.Output, error) {
		out := outputs[i]
		if i < len(outputs)-1 {
			i++
		}
		return out, nil
	}
}

func weatherTool(ctx context.Context, toolName string, args map[string]any, kind toolspec.Kind) (string, error) {
	loc, _ := args["location"].(string)
	days, _ := args["days"].(int64)
	return "WX(" + loc + "," + itoa(days) + ")", nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// Scenario A — single local tool, happy path.
func TestScenarioA(t *testing.T) {
	e := &react.Executor{
		Registry: weatherRegistry(t),
		Reason: sequencedReason(
			reasoner.Output{Thought: "look up weather", ToolName: "weather_forecast", ToolArgs: map[string]any{"location": "Paris"}},
			reasoner.Output{Thought: "done", ToolName: trajectory.Finish},
		),
		Tool: weatherTool,
		Now:  func() time.Time { return time.Unix(0, 0) },
	}
	traj := e.RunLoop(context.Background(), "What is the weather in Paris?", 10, "")
	require.Len(t, traj.Steps, 2)
	require.Equal(t, "WX(Paris,7)", traj.Steps[0].Observation)
	require.Equal(t, []string{"weather_forecast"}, trajectory.ToolsUsed(traj))
}

// Scenario B — argument hallucination tolerated.
func TestScenarioB(t *testing.T) {
	e := &react.Executor{
		Registry: weatherRegistry(t),
		Reason: sequencedReason(
			reasoner.Output{ToolName: "weather_forecast", ToolArgs: map[string]any{"location": "Paris", "data_fields": []any{"temp"}}},
			reasoner.Output{ToolName: trajectory.Finish},
		),
		Tool: weatherTool,
		Now:  func() time.Time { return time.Unix(0, 0) },
	}
	traj := e.RunLoop(context.Background(), "weather?", 10, "")
	require.Equal(t, "WX(Paris,7)", traj.Steps[0].Observation)
}

// Scenario C — unknown tool, then recovery.
func TestScenarioC(t *testing.T) {
	e := &react.Executor{
		Registry: weatherRegistry(t),
		Reason: sequencedReason(
			reasoner.Output{ToolName: "snow_depth"},
			reasoner.Output{ToolName: "weather_forecast", ToolArgs: map[string]any{"location": "Oslo"}},
			reasoner.Output{ToolName: trajectory.Finish},
		),
		Tool: weatherTool,
		Now:  func() time.Time { return time.Unix(0, 0) },
	}
	traj := e.RunLoop(context.Background(), "weather?", 10, "")
	require.Len(t, traj.Steps, 3)
	require.Contains(t, traj.Steps[0].Error, "Unknown tool")
	require.Equal(t, "WX(Oslo,7)", traj.Steps[1].Observation)
	require.Equal(t, []string{"weather_forecast"}, trajectory.ToolsUsed(traj))
}

// Scenario D — iteration cap with no finish.
func TestScenarioD(t *testing.T) {
	e := &react.Executor{
		Registry: weatherRegistry(t),
		Reason: sequencedReason(
			reasoner.Output{ToolName: "weather_forecast", ToolArgs: map[string]any{"location": "Oslo"}},
		),
		Tool: weatherTool,
		Now:  func() time.Time { return time.Unix(0, 0) },
	}
	traj := e.RunLoop(context.Background(), "weather?", 3, "")
	require.Len(t, traj.Steps, 3)
	for _, s := range traj.Steps {
		require.True(t, s.IsComplete())
	}
	require.Equal(t, []string{"weather_forecast"}, trajectory.ToolsUsed(traj))
}

// Scenario E — remote tool transport error; only successful tools count.
func TestScenarioE(t *testing.T) {
	e := &react.Executor{
		Registry: weatherRegistry(t),
		Reason: sequencedReason(
			reasoner.Output{ToolName: "weather_forecast", ToolArgs: map[string]any{"location": "Oslo"}},
			reasoner.Output{ToolName: trajectory.Finish},
		),
		Tool: func(ctx context.Context, toolName string, args map[string]any, kind toolspec.Kind) (string, error) {
			return "", errors.New("transport error")
		},
		Now: func() time.Time { return time.Unix(0, 0) },
	}
	traj := e.RunLoop(context.Background(), "weather?", 10, "")
	require.Empty(t, trajectory.ToolsUsed(traj))
	require.NotEmpty(t, traj.Steps[0].Error)
}

func TestReasonerFailureRecordedAsStepErrorNotFatal(t *testing.T) {
	e := &react.Executor{
		Registry: weatherRegistry(t),
		Reason: func(ctx context.Context, prompt, summary string, catalog []toolspec.CatalogEntry, userName string) (reasoner.Output, error) {
			return reasoner.Output{}, reasoner.ErrMalformedOutput
		},
		Now: func() time.Time { return time.Unix(0, 0) },
	}
	traj := e.RunLoop(context.Background(), "weather?", 2, "")
	require.Len(t, traj.Steps, 2)
	for _, s := range traj.Steps {
		require.NotEmpty(t, s.Error)
	}
}
