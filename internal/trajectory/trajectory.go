// Package trajectory implements the ReAct trajectory data model: the
// ordered sequence of reason/act/observe steps accumulated during a single
// conversation turn, plus the deterministic summarization used to feed the
// reasoner on subsequent iterations.
package trajectory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Finish is the reserved tool-name sentinel that terminates the loop without
// a tool dispatch.
const Finish = "finish"

// CompletedObservation is the fixed observation recorded for a Finish step.
const CompletedObservation = "Completed."

// Step is one ReAct iteration: a reasoning output plus, optionally, a tool
// dispatch and its observation or error.
type Step struct {
	Iteration int
	Thought   string
	ToolName  string
	ToolArgs  map[string]any
	// Observation and Error are mutually exclusive except for Finish, which
	// may carry Observation == CompletedObservation and no Error.
	Observation string
	Error       string
	Timestamp   time.Time
}

// IsComplete reports whether the step has been resolved with either an
// observation or an error.
func (s Step) IsComplete() bool {
	return s.Observation != "" || s.Error != ""
}

// Trajectory is the ordered sequence of steps for a single turn. It is
// created fresh at the start of each turn and discarded once the turn
// completes.
type Trajectory struct {
	Steps []Step
}

// New returns an empty trajectory.
func New() *Trajectory {
	return &Trajectory{}
}

// Append adds a step to the trajectory. Callers must supply Iteration equal
// to len(Steps) before appending; this mirrors the spec's "no gaps"
// invariant without requiring a separate index type.
func (t *Trajectory) Append(s Step) {
	t.Steps = append(t.Steps, s)
}

// IsTerminal reports whether the trajectory's last step is Finish. It does
// not know about the iteration cap; callers combine this with their own
// cap check (see react.Executor).
func (t *Trajectory) IsTerminal() bool {
	if len(t.Steps) == 0 {
		return false
	}
	return t.Steps[len(t.Steps)-1].ToolName == Finish
}

// Summarize renders the trajectory deterministically for reasoner context.
// Each step becomes four labeled lines (Thought, Tool, Args, and either
// Observation or Error), separated by a blank line.
func Summarize(t *Trajectory) string {
	if t == nil || len(t.Steps) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range t.Steps {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
		fmt.Fprintf(&b, "Tool: %s\n", s.ToolName)
		fmt.Fprintf(&b, "Args: %s\n", formatArgs(s.ToolArgs))
		if s.Error != "" {
			fmt.Fprintf(&b, "Error: %s", s.Error)
		} else {
			fmt.Fprintf(&b, "Observation: %s", s.Observation)
		}
	}
	return b.String()
}

// formatArgs renders a compact, key-sorted "key=value" list so Summarize is
// stable across equal inputs regardless of map iteration order.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, " ")
}

// ToolsUsed returns the ordered, distinct list of non-Finish tool names that
// produced a successful observation, excluding steps that ended in error.
// Only tools with a successful observation count as "used" (spec §8.4
// Scenario E).
func ToolsUsed(t *Trajectory) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool, len(t.Steps))
	out := make([]string, 0, len(t.Steps))
	for _, s := range t.Steps {
		if s.ToolName == "" || s.ToolName == Finish {
			continue
		}
		if s.Observation == "" || s.Error != "" {
			continue
		}
		if seen[s.ToolName] {
			continue
		}
		seen[s.ToolName] = true
		out = append(out, s.ToolName)
	}
	return out
}
