package convoworkflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/relayrun/convorch/internal/localtools"
	"github.com/relayrun/convorch/internal/mcppool"
	"github.com/relayrun/convorch/internal/reasoner"
	"github.com/relayrun/convorch/internal/telemetry"
	"github.com/relayrun/convorch/internal/toolspec"
)

// Activities bundles the three activity contracts the workflow requires
// (§4.8: ReasonerActivity, ToolActivity, ExtractActivity) together with the
// collaborators they close over. A single Activities value is registered
// with the Temporal worker; its methods are the registered activity
// functions. It carries no per-run tool registry: the workflow's own
// registry (buildCatalog, reflecting the same CoreConfig the workflow was
// started with) is the single source of truth for dispatch, and passes
// everything ToolActivity needs to route a call through ToolActivityInput.
type Activities struct {
	Reasoner reasoner.Reasoner
	Extract  reasoner.Extractor
	Pool     *mcppool.Pool
	Logger   telemetry.Logger

	// LocalInvokers maps a Local tool's name to its in-process implementation.
	LocalInvokers map[string]localtools.Invoker
}

func (a *Activities) logger() telemetry.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return telemetry.NoopLogger{}
}

// ReasonerActivityInput is the payload for ReasonerActivity.
type ReasonerActivityInput struct {
	Prompt            string
	TrajectorySummary string
	Catalog           []toolspec.CatalogEntry
	UserName          string
}

// ReasonerActivityOutput mirrors reasoner.Output for activity (de)serialization.
type ReasonerActivityOutput struct {
	Thought  string
	ToolName string
	ToolArgs map[string]any
}

// ReasonerActivity wraps the Reasoner Adapter (§4.8 item 1).
func (a *Activities) ReasonerActivity(ctx context.Context, in ReasonerActivityInput) (ReasonerActivityOutput, error) {
	out, err := a.Reasoner.Reason(ctx, in.Prompt, in.TrajectorySummary, in.Catalog, in.UserName)
	if err != nil {
		return ReasonerActivityOutput{}, err
	}
	return ReasonerActivityOutput{Thought: out.Thought, ToolName: out.ToolName, ToolArgs: out.ToolArgs}, nil
}

// ToolActivityInput is the payload for ToolActivity. Args have already been
// validated and shaped by the workflow's registry before this activity is
// scheduled. ServerNamespace, ServerToolName, and Endpoint are populated by
// the workflow from that same registry and are only meaningful when Kind is
// toolspec.Remote; carrying them here (rather than re-resolving the
// descriptor from a worker-global registry) keeps ToolActivity's dispatch
// in sync with exactly the catalog the reasoner was shown for this run.
type ToolActivityInput struct {
	ToolName        string
	Args            map[string]any
	Kind            toolspec.Kind
	ServerNamespace string
	ServerToolName  string
	Endpoint        string
}

// ToolActivityOutput carries the observation string of a successful call.
type ToolActivityOutput struct {
	Observation string
}

// ToolActivity wraps both the local and remote tool-invocation branches
// (§4.8 item 2; §4.4 step 5b/5c).
func (a *Activities) ToolActivity(ctx context.Context, in ToolActivityInput) (ToolActivityOutput, error) {
	if in.Kind == toolspec.Local {
		invoke, ok := a.LocalInvokers[in.ToolName]
		if !ok {
			return ToolActivityOutput{}, fmt.Errorf("convoworkflow: no local invoker registered for %q", in.ToolName)
		}
		observation, err := invoke(ctx, in.Args)
		if err != nil {
			a.logger().Warn(ctx, "local tool invocation failed", "tool", in.ToolName, "err", err)
			return ToolActivityOutput{}, err
		}
		return ToolActivityOutput{Observation: observation}, nil
	}

	payload, err := json.Marshal(in.Args)
	if err != nil {
		return ToolActivityOutput{}, fmt.Errorf("convoworkflow: marshal tool args: %w", err)
	}
	resp, err := a.Pool.Call(ctx, in.Endpoint, in.ServerNamespace, in.ServerToolName, payload)
	if err != nil {
		a.logger().Warn(ctx, "remote tool call failed", "tool", in.ToolName, "namespace", in.ServerNamespace, "endpoint", in.Endpoint, "err", err)
		var re *mcppool.RemoteError
		if errors.As(err, &re) && !re.Retriable {
			// Not retried; the repair hint rides along in the message so it
			// reaches the trajectory step's error.
			return ToolActivityOutput{}, temporal.NewNonRetryableApplicationError(re.Error()+re.RepairHint, "RemoteError", re)
		}
		return ToolActivityOutput{}, err
	}
	return ToolActivityOutput{Observation: string(resp.Result)}, nil
}

// ExtractActivityInput is the payload for ExtractActivity.
type ExtractActivityInput struct {
	Prompt            string
	TrajectorySummary string
	UserName          string
}

// ExtractActivityOutput carries the final answer string.
type ExtractActivityOutput struct {
	Answer string
}

// ExtractActivity wraps the Extract Step (§4.8 item 3).
func (a *Activities) ExtractActivity(ctx context.Context, in ExtractActivityInput) (ExtractActivityOutput, error) {
	answer, err := a.Extract.Extract(ctx, in.Prompt, in.TrajectorySummary, in.UserName)
	if err != nil {
		return ExtractActivityOutput{}, err
	}
	return ExtractActivityOutput{Answer: answer}, nil
}

const (
	// ReasonerActivityName is the registered Temporal activity name.
	ReasonerActivityName = "ReasonerActivity"
	// ToolActivityName is the registered Temporal activity name.
	ToolActivityName = "ToolActivity"
	// ExtractActivityName is the registered Temporal activity name.
	ExtractActivityName = "ExtractActivity"
)
