// Command client is an illustrative CLI for driving a conversation
// workflow: start or continue it with a prompt, poll incremental updates,
// fetch the full conversation, or end the chat.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"goa.design/clue/log"

	"github.com/relayrun/convorch/internal/convoworkflow"
	"github.com/relayrun/convorch/internal/workflowstate"
)

func main() {
	var (
		hostPortF      = flag.String("temporal-host-port", "localhost:7233", "Temporal frontend address")
		namespaceF     = flag.String("temporal-namespace", "default", "Temporal namespace")
		taskQueueF     = flag.String("task-queue", "convorch-default", "Workflow task queue for new conversations")
		workflowIDF    = flag.String("workflow-id", "", "Existing conversation's workflow id (omit to start a fresh one)")
		lastSeenF      = flag.String("last-seen-message-id", "", "Last seen message id, for get_conversation_updates")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: client [flags] <start_or_send|get_status|get_conversation_updates|get_full_conversation|end_chat> [prompt text...]")
		os.Exit(2)
	}
	command := flag.Arg(0)

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	c, err := client.Dial(client.Options{HostPort: *hostPortF, Namespace: *namespaceF})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("dial temporal: %w", err))
	}
	defer c.Close()

	switch command {
	case "start_or_send":
		runStartOrSend(ctx, c, *workflowIDF, *taskQueueF, promptText())
	case "get_status":
		runGetStatus(ctx, c, requireWorkflowID(*workflowIDF))
	case "get_conversation_updates":
		runGetUpdates(ctx, c, requireWorkflowID(*workflowIDF), *lastSeenF)
	case "get_full_conversation":
		runGetFullConversation(ctx, c, requireWorkflowID(*workflowIDF))
	case "end_chat":
		runEndChat(ctx, c, requireWorkflowID(*workflowIDF))
	default:
		log.Fatal(ctx, fmt.Errorf("unknown command %q", command))
	}
}

func promptText() string {
	if flag.NArg() < 2 {
		return ""
	}
	return flag.Arg(1)
}

func requireWorkflowID(id string) string {
	if id == "" {
		fmt.Fprintln(os.Stderr, "-workflow-id is required for this command")
		os.Exit(2)
	}
	return id
}

// runStartOrSend implements §6.1 start_or_send: if workflow_id is absent, a
// fresh workflow is created (id format "durable-agent-{uuid}") with the
// prompt as its StartInput.InitialPrompt, which the workflow queues as its
// first prompt; otherwise the prompt signal is
// sent to the existing workflow. start_or_send carries no configuration
// fields (§6.1, §6.3): CoreConfig is process-wide and is bound into every
// execution by the worker that hosts it (cmd/worker), not supplied here.
func runStartOrSend(ctx context.Context, c client.Client, workflowID, taskQueue, prompt string) {
	if workflowID == "" {
		workflowID = "durable-agent-" + uuid.NewString()
		_, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: taskQueue,
		}, convoworkflow.ConversationWorkflow, convoworkflow.StartInput{
			InitialPrompt: prompt,
		})
		if err != nil {
			log.Fatal(ctx, fmt.Errorf("start workflow: %w", err))
		}
		printJSON(map[string]string{"workflow_id": workflowID})
		return
	}

	if err := c.SignalWorkflow(ctx, workflowID, "", convoworkflow.SignalPrompt, prompt); err != nil {
		log.Fatal(ctx, fmt.Errorf("signal prompt: %w", err))
	}
	printJSON(map[string]string{"workflow_id": workflowID})
}

// runGetStatus maps Temporal's WorkflowExecutionStatus to the four values a
// caller plausibly wants (§6.1, SPEC supplement C.3).
func runGetStatus(ctx context.Context, c client.Client, workflowID string) {
	resp, err := c.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("describe workflow: %w", err))
	}
	printJSON(map[string]string{
		"workflow_id": workflowID,
		"status":      mapWorkflowStatus(resp.GetWorkflowExecutionInfo().GetStatus()),
	})
}

func mapWorkflowStatus(s enumspb.WorkflowExecutionStatus) string {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING, enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "RUNNING"
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "COMPLETED"
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED, enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "FAILED"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED, enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

func runGetUpdates(ctx context.Context, c client.Client, workflowID, lastSeen string) {
	resp, err := c.QueryWorkflow(ctx, workflowID, "", convoworkflow.QueryIncremental, convoworkflow.IncrementalQueryInput{
		LastSeenMessageID: lastSeen,
	})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("query %s: %w", convoworkflow.QueryIncremental, err))
	}
	var upd workflowstate.Update
	if err := resp.Get(&upd); err != nil {
		log.Fatal(ctx, fmt.Errorf("decode query result: %w", err))
	}
	printJSON(upd)
}

func runGetFullConversation(ctx context.Context, c client.Client, workflowID string) {
	resp, err := c.QueryWorkflow(ctx, workflowID, "", convoworkflow.QueryFullState)
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("query %s: %w", convoworkflow.QueryFullState, err))
	}
	var state workflowstate.FullState
	if err := resp.Get(&state); err != nil {
		log.Fatal(ctx, fmt.Errorf("decode query result: %w", err))
	}
	printJSON(state)
}

func runEndChat(ctx context.Context, c client.Client, workflowID string) {
	if err := c.SignalWorkflow(ctx, workflowID, "", convoworkflow.SignalEndChat, nil); err != nil {
		log.Fatal(ctx, fmt.Errorf("signal end_chat: %w", err))
	}
	printJSON(map[string]string{"workflow_id": workflowID, "status": "ok"})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
