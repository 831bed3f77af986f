// Package react implements the ReAct Step Executor: the per-iteration
// reason/act/observe cycle and the bounded loop that drives it. Reasoner
// invocation and tool dispatch are injected as plain functions so this
// package is fully unit-testable without a Temporal environment; the
// conversation workflow supplies implementations that go through
// workflow.ExecuteActivity.
package react

import (
	"context"
	"fmt"
	"time"

	"github.com/relayrun/convorch/internal/reasoner"
	"github.com/relayrun/convorch/internal/telemetry"
	"github.com/relayrun/convorch/internal/toolspec"
	"github.com/relayrun/convorch/internal/trajectory"
)

// ReasonFunc invokes the Reasoner Adapter boundary (§4.8 ReasonerActivity).
type ReasonFunc func(ctx context.Context, prompt, trajectorySummary string, catalog []toolspec.CatalogEntry, userName string) (reasoner.Output, error)

// ToolFunc invokes the Tool Execution boundary (§4.8 ToolActivity) for a
// single already-shaped call. kind selects the local/remote branch.
type ToolFunc func(ctx context.Context, toolName string, shapedArgs map[string]any, kind toolspec.Kind) (observation string, err error)

// Executor drives one iteration of the ReAct loop at a time.
type Executor struct {
	Registry *toolspec.Registry
	Reason   ReasonFunc
	Tool     ToolFunc
	Logger   telemetry.Logger
	// Now returns the current instant. Workflow callers must supply a
	// deterministic clock (e.g. workflow.Now); defaults to time.Now.
	Now func() time.Time
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Executor) logger() telemetry.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return telemetry.NoopLogger{}
}

// RunIteration performs one ReAct iteration (§4.4) and appends exactly one
// step to traj. It returns terminal=true when the loop must stop (the
// reasoner chose "finish"). Reasoner and tool failures never surface as a Go
// error from this method: per §7's propagation policy they are recorded as
// step-level errors and the loop continues.
func (e *Executor) RunIteration(ctx context.Context, iteration int, prompt string, traj *trajectory.Trajectory, userName string) bool {
	summary := trajectory.Summarize(traj)
	catalog := e.Registry.ListForReasoner()

	out, err := e.Reason(ctx, prompt, summary, catalog, userName)
	if err != nil {
		traj.Append(trajectory.Step{
			Iteration: iteration,
			Error:     err.Error(),
			Timestamp: e.now(),
		})
		return false
	}

	step := trajectory.Step{
		Iteration: iteration,
		Thought:   out.Thought,
		ToolName:  out.ToolName,
		ToolArgs:  out.ToolArgs,
		Timestamp: e.now(),
	}

	if out.ToolName == trajectory.Finish {
		step.Observation = trajectory.CompletedObservation
		traj.Append(step)
		return true
	}

	descriptor, lookupErr := e.Registry.Get(out.ToolName)
	if lookupErr != nil {
		step.Error = fmt.Sprintf("Unknown tool: %s", out.ToolName)
		traj.Append(step)
		return false
	}

	shaped, dropped, shapeErr := e.Registry.ValidateAndShape(out.ToolName, out.ToolArgs)
	if shapeErr != nil {
		step.Error = shapeErr.Error()
		traj.Append(step)
		return false
	}
	if len(dropped) > 0 {
		e.logger().Warn(ctx, "dropped unrecognized tool arguments", "tool", out.ToolName, "keys", dropped)
	}

	observation, toolErr := e.Tool(ctx, out.ToolName, shaped, descriptor.Kind)
	if toolErr != nil {
		step.Error = toolErr.Error()
	} else {
		step.Observation = observation
	}
	traj.Append(step)
	return false
}

// RunLoop runs iterations until the executor reports terminal=true or
// maxIterations is reached (§4.6.3 steps 2-3). It never adds a synthetic
// final step when the cap is hit without "finish" (§4.4).
func (e *Executor) RunLoop(ctx context.Context, prompt string, maxIterations int, userName string) *trajectory.Trajectory {
	traj := trajectory.New()
	for i := 0; i < maxIterations; i++ {
		if e.RunIteration(ctx, i, prompt, traj, userName) {
			break
		}
	}
	return traj
}
