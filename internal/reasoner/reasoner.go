// Package reasoner defines the narrow Reasoner Adapter / Extract Step
// contract (§4.4, §4.5, §9 "duck-typed reasoner/extract call") and ships
// concrete Anthropic- and OpenAI-backed implementations of it.
package reasoner

import (
	"context"
	"errors"

	"github.com/relayrun/convorch/internal/toolspec"
)

// Output is the structured result of one reasoning step.
type Output struct {
	Thought  string
	ToolName string
	ToolArgs map[string]any
}

// Reasoner is the boundary contract between the ReAct Step Executor and an
// LLM-backed (or any other) decision procedure. Implementations are
// replaceable; the core only depends on this interface.
type Reasoner interface {
	Reason(ctx context.Context, prompt, trajectorySummary string, catalog []toolspec.CatalogEntry, userName string) (Output, error)
}

// Extractor is the boundary contract for producing the final answer from a
// completed trajectory.
type Extractor interface {
	Extract(ctx context.Context, prompt, trajectorySummary, userName string) (string, error)
}

// ErrMalformedOutput is wrapped into errors returned by Reasoner
// implementations when the model's structured output is missing required
// fields or is not valid JSON, corresponding to the "Reasoner error"
// taxonomy entry (§7.1).
var ErrMalformedOutput = errors.New("reasoner: malformed structured output")
