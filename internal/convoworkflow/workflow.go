package convoworkflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/relayrun/convorch/internal/localtools"
	"github.com/relayrun/convorch/internal/message"
	"github.com/relayrun/convorch/internal/react"
	"github.com/relayrun/convorch/internal/reasoner"
	"github.com/relayrun/convorch/internal/toolspec"
	"github.com/relayrun/convorch/internal/trajectory"
	"github.com/relayrun/convorch/internal/workflowstate"
)

// Signal and query names (§4.6.1, §4.7).
const (
	SignalPrompt   = "prompt"
	SignalEndChat  = "end_chat"
	QueryFullState = "full_state"
	QueryIncremental = "incremental_updates"
)

// WorkflowName is the registered Temporal workflow type name.
const WorkflowName = "ConversationWorkflow"

// StartInput is the workflow's start parameter. A conversation may start
// idle and wait for its first prompt signal, or start with one already
// queued.
type StartInput struct {
	Config        CoreConfig
	InitialPrompt string
	UserName      string
}

// IncrementalQueryInput is the argument to the incremental_updates query.
type IncrementalQueryInput struct {
	LastSeenMessageID string
}

// ConversationWorkflow is the durable per-conversation state machine
// (§4.6). It accepts prompt/end_chat signals, processes prompts
// sequentially through the ReAct loop via three activity boundaries, and
// answers full_state/incremental_updates queries throughout its life.
func ConversationWorkflow(ctx workflow.Context, in StartInput) (workflowstate.FullState, error) {
	cfg := in.Config.Resolved()
	state := workflowstate.New()

	if in.InitialPrompt != "" {
		state.EnqueuePrompt(in.InitialPrompt)
	}

	promptCh := workflow.GetSignalChannel(ctx, SignalPrompt)
	endChatCh := workflow.GetSignalChannel(ctx, SignalEndChat)

	if err := workflow.SetQueryHandler(ctx, QueryFullState, func() (workflowstate.FullState, error) {
		return state.Snapshot(), nil
	}); err != nil {
		return workflowstate.FullState{}, fmt.Errorf("convoworkflow: register %s query: %w", QueryFullState, err)
	}
	if err := workflow.SetQueryHandler(ctx, QueryIncremental, func(q IncrementalQueryInput) (workflowstate.Update, error) {
		return state.IncrementalUpdate(q.LastSeenMessageID), nil
	}); err != nil {
		return workflowstate.FullState{}, fmt.Errorf("convoworkflow: register %s query: %w", QueryIncremental, err)
	}

	registry := buildCatalog(cfg)
	executor := &react.Executor{
		Registry: registry,
		Reason:   reasonViaActivity(ctx, in.UserName),
		Tool:     toolViaActivity(ctx, registry, cfg.MCPURL),
		Now:      func() time.Time { return workflow.Now(ctx) },
	}

	for {
		// Drain any signals that arrived while idle, then decide whether to
		// keep running (§4.6.2 IDLE).
		drainSignals(ctx, promptCh, endChatCh, state)

		if state.ShouldTerminate() {
			break
		}

		promptText, ok := state.DequeuePrompt()
		if !ok {
			// Nothing queued and chat not yet ended: block until a signal
			// arrives (§5 suspension points).
			selector := workflow.NewSelector(ctx)
			selector.AddReceive(promptCh, func(c workflow.ReceiveChannel, more bool) {
				var p string
				c.Receive(ctx, &p)
				state.EnqueuePrompt(p)
			})
			selector.AddReceive(endChatCh, func(c workflow.ReceiveChannel, more bool) {
				var ignored any
				c.Receive(ctx, &ignored)
				state.ChatEnded = true
			})
			selector.Select(ctx)
			continue
		}

		runTurn(ctx, cfg, executor, state, promptText, in.UserName)
	}

	return state.Snapshot(), nil
}

// drainSignals consumes every signal already buffered on the channels
// without blocking, so queued prompts are dequeued in arrival order before
// the next turn decision (§4.6.4).
func drainSignals(ctx workflow.Context, promptCh, endChatCh workflow.ReceiveChannel, state *workflowstate.State) {
	for {
		var p string
		if !promptCh.ReceiveAsync(&p) {
			break
		}
		state.EnqueuePrompt(p)
	}
	for {
		var ignored any
		if !endChatCh.ReceiveAsync(&ignored) {
			break
		}
		state.ChatEnded = true
	}
}

// runTurn implements the §4.6.3 turn-processing algorithm for one dequeued
// prompt.
func runTurn(ctx workflow.Context, cfg CoreConfig, executor *react.Executor, state *workflowstate.State, promptText, userName string) {
	// The id is recorded as a side effect so replay reuses the same value.
	var id string
	_ = workflow.SideEffect(ctx, func(workflow.Context) any {
		return uuid.New().String()
	}).Get(&id)
	msg := message.ConversationMessage{
		ID:            id,
		UserMessage:   promptText,
		UserTimestamp: workflow.Now(ctx),
	}
	state.BeginTurn(msg)

	traj := executor.RunLoop(toGoContext(ctx), promptText, cfg.MaxIterations, userName)
	state.CurrentTrajectory = traj

	summary := trajectory.Summarize(traj)
	var out ExtractActivityOutput
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ExtractActivityTimeout,
		RetryPolicy:         defaultActivityRetryPolicy(),
	})
	err := workflow.ExecuteActivity(actx, ExtractActivityName, ExtractActivityInput{
		Prompt:            promptText,
		TrajectorySummary: summary,
		UserName:          userName,
	}).Get(actx, &out)

	tail := state.TailMessage()
	now := workflow.Now(ctx)
	if err != nil {
		tail.Fail(err.Error(), now)
	} else {
		tail.Complete(out.Answer, trajectory.ToolsUsed(traj), now)
	}
	state.EndTurn()
}

func defaultActivityRetryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{MaximumAttempts: 3}
}

// reasonViaActivity adapts the ReasonerActivity into a react.ReasonFunc that
// schedules it through the workflow's activity options.
func reasonViaActivity(ctx workflow.Context, userName string) react.ReasonFunc {
	return func(_ context.Context, prompt, summary string, catalog []toolspec.CatalogEntry, _ string) (reasoner.Output, error) {
		actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: ReasonerActivityTimeout,
			RetryPolicy:         defaultActivityRetryPolicy(),
		})
		var out ReasonerActivityOutput
		if err := workflow.ExecuteActivity(actx, ReasonerActivityName, ReasonerActivityInput{
			Prompt:            prompt,
			TrajectorySummary: summary,
			Catalog:           catalog,
			UserName:          userName,
		}).Get(actx, &out); err != nil {
			return reasoner.Output{}, err
		}
		return reasoner.Output{Thought: out.Thought, ToolName: out.ToolName, ToolArgs: out.ToolArgs}, nil
	}
}

// toolViaActivity adapts ToolActivity into a react.ToolFunc. For a Remote
// tool it resolves the server-side dispatch fields (namespace, server-side
// tool name, endpoint) from registry — the same registry instance the
// reasoner's catalog was built from — and carries them through
// ToolActivityInput, so ToolActivity never has to consult a registry of
// its own that could fall out of sync with this run's catalog.
func toolViaActivity(ctx workflow.Context, registry *toolspec.Registry, mcpURL string) react.ToolFunc {
	return func(_ context.Context, toolName string, args map[string]any, kind toolspec.Kind) (string, error) {
		timeout := LocalToolActivityTimeout
		input := ToolActivityInput{ToolName: toolName, Args: args, Kind: kind}
		if kind == toolspec.Remote {
			timeout = RemoteToolActivityTimeout
			d, err := registry.Get(toolName)
			if err != nil {
				return "", err
			}
			input.ServerNamespace = d.ServerNamespace
			input.ServerToolName = d.ServerToolName
			input.Endpoint = mcpURL
		}
		actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: timeout,
			RetryPolicy:         defaultActivityRetryPolicy(),
		})
		var out ToolActivityOutput
		if err := workflow.ExecuteActivity(actx, ToolActivityName, input).Get(actx, &out); err != nil {
			return "", err
		}
		return out.Observation, nil
	}
}

// toGoContext gives react.Executor's injected funcs a context.Context to
// satisfy their signature; workflow.Context itself carries the relevant
// deadline/cancellation semantics through workflow.ExecuteActivity, so a
// background context is sufficient here — it is never used for I/O
// directly, only threaded through.
func toGoContext(workflow.Context) context.Context {
	return context.Background()
}

// buildCatalog constructs the tool registry appropriate for cfg. Workflow
// code must be deterministic, so this only indexes names/schemas already
// known at compile time or passed in via the (deterministic) config; it
// never performs I/O. The actual local/remote dispatch happens inside
// ToolActivity. Remote descriptors are only registered when cfg.ToolSet is
// ToolSetRemote, so a run configured for the local catalog never exposes
// tools that ToolActivity has no endpoint to reach.
func buildCatalog(cfg CoreConfig) *toolspec.Registry {
	r := toolspec.NewRegistry()
	_ = r.Register(localtools.Descriptor())
	if cfg.ToolSet == ToolSetRemote {
		for _, d := range cfg.RemoteToolDescriptors {
			_ = r.Register(d)
		}
	}
	return r
}
