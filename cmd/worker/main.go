// Command worker runs the Temporal worker process that hosts the
// conversation workflow and its three activities.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"goa.design/clue/log"

	"github.com/relayrun/convorch/internal/convoworkflow"
	"github.com/relayrun/convorch/internal/localtools"
	"github.com/relayrun/convorch/internal/mcppool"
	"github.com/relayrun/convorch/internal/reasoner"
	"github.com/relayrun/convorch/internal/telemetry"
	"github.com/relayrun/convorch/internal/workflowstate"
)

func main() {
	var (
		hostPortF         = flag.String("temporal-host-port", "localhost:7233", "Temporal frontend address")
		namespaceF        = flag.String("temporal-namespace", "default", "Temporal namespace")
		taskQueueF        = flag.String("task-queue", "convorch-default", "Workflow task queue")
		maxIterationsF    = flag.Int("max-iterations", convoworkflow.DefaultMaxIterations, "ReAct loop iteration cap")
		toolSetF          = flag.String("tool-set", string(convoworkflow.ToolSetLocal), "Tool catalog source: local or remote")
		proxyModeF        = flag.Bool("proxy-mode", false, "Prefix remote tool names with server namespace")
		mcpURLF           = flag.String("mcp-url", "", "Remote tool server endpoint (required when -tool-set=remote)")
		toolsMockF        = flag.Bool("tools-mock", false, "Wire a deterministic tool stub instead of real tool invocation")
		reasonerProviderF = flag.String("reasoner-provider", string(convoworkflow.ReasonerAnthropic), "Reasoner backend: anthropic or openai")
		extractProviderF  = flag.String("extract-provider", "", "Extract backend: anthropic or openai (defaults to -reasoner-provider)")
		anthropicModelF   = flag.String("anthropic-model", "claude-sonnet-4-5", "Model id used by the Anthropic adapter")
		openAIModelF      = flag.String("openai-model", "gpt-4o", "Model id used by the OpenAI adapter")
		debugF            = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debugF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg := convoworkflow.CoreConfig{
		MaxIterations:        *maxIterationsF,
		ToolSet:              convoworkflow.ToolSet(*toolSetF),
		ProxyMode:            *proxyModeF,
		MCPURL:               *mcpURLF,
		ToolsMock:            *toolsMockF,
		ReasonerProviderName: convoworkflow.ReasonerProvider(*reasonerProviderF),
		ExtractProviderName:  convoworkflow.ReasonerProvider(*extractProviderF),
		WorkflowTaskQueue:    *taskQueueF,
	}.Resolved()

	if cfg.ToolSet == convoworkflow.ToolSetRemote && cfg.MCPURL == "" {
		log.Fatal(ctx, fmt.Errorf("-mcp-url is required when -tool-set=remote"))
	}

	pool := mcppool.NewPool(
		mcppool.HTTPCallerFactory(mcppool.HTTPOptions{}),
		mcppool.NamingPolicy{Proxy: cfg.ProxyMode},
	)

	// tool_set/proxy_mode/mcp_url are process-wide options (§6.3: "for a
	// given workflow worker"), so remote tool discovery happens once here,
	// at startup, never inside the workflow coroutine.
	if cfg.ToolSet == convoworkflow.ToolSetRemote {
		descriptors, err := convoworkflow.DiscoverRemoteTools(ctx, pool, cfg.MCPURL, remoteNamespace(cfg.MCPURL))
		if err != nil {
			log.Fatal(ctx, err)
		}
		cfg.RemoteToolDescriptors = descriptors
		log.Printf(ctx, "discovered %d remote tools from %s", len(descriptors), cfg.MCPURL)
	}

	activities, err := buildActivities(pool, cfg, *anthropicModelF, *openAIModelF)
	if err != nil {
		log.Fatal(ctx, err)
	}

	c, err := client.Dial(client.Options{HostPort: *hostPortF, Namespace: *namespaceF})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("dial temporal: %w", err))
	}
	defer c.Close()

	w := worker.New(c, cfg.WorkflowTaskQueue, worker.Options{})
	// Bind the worker-resolved, discovery-completed cfg into every
	// execution: start_or_send (§6.1) carries no configuration fields, so
	// the workflow must get tool_set/proxy_mode/mcp_url/reasoner_provider
	// from the process that hosts it, not from whatever the starting
	// client happened to pass in StartInput.Config.
	w.RegisterWorkflowWithOptions(boundWorkflow(cfg), workflow.RegisterOptions{Name: convoworkflow.WorkflowName})
	w.RegisterActivityWithOptions(activities.ReasonerActivity, activity.RegisterOptions{Name: convoworkflow.ReasonerActivityName})
	w.RegisterActivityWithOptions(activities.ToolActivity, activity.RegisterOptions{Name: convoworkflow.ToolActivityName})
	w.RegisterActivityWithOptions(activities.ExtractActivity, activity.RegisterOptions{Name: convoworkflow.ExtractActivityName})

	errc := make(chan error, 1)
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-sig)
	}()
	go func() {
		errc <- w.Run(worker.InterruptCh())
	}()

	log.Printf(ctx, "worker exiting (%v)", <-errc)
}

// boundWorkflow closes over the worker's resolved CoreConfig so every
// execution of ConversationWorkflow uses it, regardless of what the
// starting client supplied.
func boundWorkflow(cfg convoworkflow.CoreConfig) func(workflow.Context, convoworkflow.StartInput) (workflowstate.FullState, error) {
	return func(ctx workflow.Context, in convoworkflow.StartInput) (workflowstate.FullState, error) {
		in.Config = cfg
		return convoworkflow.ConversationWorkflow(ctx, in)
	}
}

// remoteNamespace derives a stable server_namespace (§4.3) for the single
// configured mcp_url endpoint from its host, since §6.3's recognized
// options carry no separate namespace setting.
func remoteNamespace(mcpURL string) string {
	u, err := url.Parse(mcpURL)
	if err != nil || u.Host == "" {
		return "remote"
	}
	return u.Host
}

func buildActivities(pool *mcppool.Pool, cfg convoworkflow.CoreConfig, anthropicModel, openAIModel string) (*convoworkflow.Activities, error) {
	reason, extract, err := buildReasonerAndExtractor(cfg, anthropicModel, openAIModel)
	if err != nil {
		return nil, err
	}

	invokers := map[string]localtools.Invoker{
		"weather_forecast": localtools.WeatherForecast,
	}
	if cfg.ToolsMock {
		invokers["weather_forecast"] = func(_ context.Context, args map[string]any) (string, error) {
			return "WX(mock,0)", nil
		}
	}

	return &convoworkflow.Activities{
		Reasoner:      reason,
		Extract:       extract,
		Pool:          pool,
		Logger:        telemetry.NewClueLogger(),
		LocalInvokers: invokers,
	}, nil
}

func buildReasonerAndExtractor(cfg convoworkflow.CoreConfig, anthropicModel, openAIModel string) (reasoner.Reasoner, reasoner.Extractor, error) {
	reason, err := provider(cfg.ReasonerProviderName, anthropicModel, openAIModel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ExtractProviderName == cfg.ReasonerProviderName {
		if extractor, ok := reason.(reasoner.Extractor); ok {
			return reason, extractor, nil
		}
	}
	extractReasoner, err := provider(cfg.ExtractProviderName, anthropicModel, openAIModel)
	if err != nil {
		return nil, nil, err
	}
	extract, ok := extractReasoner.(reasoner.Extractor)
	if !ok {
		return nil, nil, fmt.Errorf("convorch: provider %q does not implement Extractor", cfg.ExtractProviderName)
	}
	return reason, extract, nil
}

func provider(p convoworkflow.ReasonerProvider, anthropicModel, openAIModel string) (reasoner.Reasoner, error) {
	switch p {
	case convoworkflow.ReasonerOpenAI:
		return reasoner.NewOpenAIFromAPIKey(os.Getenv("OPENAI_API_KEY"), reasoner.OpenAIOptions{Model: openAIModel})
	default:
		return reasoner.NewAnthropicFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), reasoner.AnthropicOptions{Model: anthropicModel})
	}
}
