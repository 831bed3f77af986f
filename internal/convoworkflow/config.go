// Package convoworkflow implements the Conversation Workflow: the durable,
// per-conversation state machine that accepts prompt/end_chat signals, drives
// the ReAct loop through three activity boundaries, and answers full_state/
// incremental_updates queries.
package convoworkflow

import (
	"time"

	"github.com/relayrun/convorch/internal/toolspec"
)

// ToolSet discriminates which tool catalog a workflow run is configured
// against: the in-process demo catalog, or a remote tool server.
type ToolSet string

const (
	// ToolSetLocal registers only in-process tools (internal/localtools).
	ToolSetLocal ToolSet = "local"
	// ToolSetRemote registers a remote tool server's catalog through the pool.
	ToolSetRemote ToolSet = "remote"
)

// ReasonerProvider selects which Reasoner/Extractor implementation the
// activities use.
type ReasonerProvider string

const (
	ReasonerAnthropic ReasonerProvider = "anthropic"
	ReasonerOpenAI    ReasonerProvider = "openai"
)

// CoreConfig is the process-wide configuration assembled once at worker
// startup, carrying the recognized options of the configuration surface
// (max iterations, tool catalog source, proxy naming, remote endpoint,
// mock-tools switch, reasoner/extract provider choice, and the default task
// queue) plus the remote tool catalog discovered at startup. It is constructed directly by cmd/worker, not loaded
// through a config framework.
type CoreConfig struct {
	// MaxIterations bounds the ReAct loop. Default 10.
	MaxIterations int
	// ToolSet selects the local or remote tool catalog.
	ToolSet ToolSet
	// ProxyMode selects the remote tool pool's naming policy when ToolSet is
	// ToolSetRemote: true prefixes tool names with the server namespace.
	ProxyMode bool
	// MCPURL is the remote tool server endpoint. Required when ToolSet is
	// ToolSetRemote.
	MCPURL string
	// ToolsMock, when true, makes cmd/worker replace the local
	// weather_forecast invoker with a deterministic stub, for demo/integration
	// testing. Remote tool calls are not stubbed; they still go through the pool.
	ToolsMock bool
	// ReasonerProviderName selects the Reasoner/Extractor backend.
	ReasonerProviderName ReasonerProvider
	// ExtractProviderName selects the Extractor backend independently of the
	// reasoner (the spec allows them to differ).
	ExtractProviderName ReasonerProvider
	// WorkflowTaskQueue is the Temporal task queue the worker polls and the
	// queue workflow starts are dispatched to.
	WorkflowTaskQueue string
	// RemoteToolDescriptors is the remote tool catalog discovered once at
	// worker startup (mcppool.Pool.ListTools, an MCP-style "initialize" +
	// tools/list round trip against MCPURL — see DiscoverRemoteTools, called
	// from cmd/worker) and bound into every workflow execution through
	// the registered workflow closure, so the workflow's own registry
	// construction (buildCatalog) stays a pure, deterministic function of
	// its input and never performs I/O itself. Populated only when ToolSet
	// is ToolSetRemote.
	RemoteToolDescriptors []toolspec.Descriptor
}

// DefaultMaxIterations is the iteration cap used when CoreConfig.MaxIterations
// is left unset (§4.4).
const DefaultMaxIterations = 10

// Resolved returns a copy of cfg with zero-value fields filled from defaults.
func (cfg CoreConfig) Resolved() CoreConfig {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ToolSet == "" {
		cfg.ToolSet = ToolSetLocal
	}
	if cfg.ReasonerProviderName == "" {
		cfg.ReasonerProviderName = ReasonerAnthropic
	}
	if cfg.ExtractProviderName == "" {
		cfg.ExtractProviderName = cfg.ReasonerProviderName
	}
	if cfg.WorkflowTaskQueue == "" {
		cfg.WorkflowTaskQueue = "convorch-default"
	}
	return cfg
}

// Default activity timeouts (§4.8): reasoner/extract are the same class of
// call, local tools are short, remote tools are long.
const (
	ReasonerActivityTimeout = 60 * time.Second
	ExtractActivityTimeout  = 60 * time.Second
	LocalToolActivityTimeout = 30 * time.Second
	RemoteToolActivityTimeout = 300 * time.Second
)
