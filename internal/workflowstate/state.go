// Package workflowstate implements ConversationState and the incremental
// query projection (ConversationUpdate) described in §3.1 and §4.7.
package workflowstate

import (
	"github.com/relayrun/convorch/internal/message"
	"github.com/relayrun/convorch/internal/trajectory"
)

// State is the workflow's in-memory conversation state. It is owned
// exclusively by the workflow coroutine; all mutation is serialized by
// construction (§3.2 Ownership).
type State struct {
	Messages          []message.ConversationMessage
	PendingPrompts    []string
	CurrentMessageID  string
	IsProcessing      bool
	ChatEnded         bool
	CurrentTrajectory *trajectory.Trajectory
}

// New returns a fresh, empty state (the INIT→IDLE transition, §4.6.2).
func New() *State {
	return &State{}
}

// EnqueuePrompt appends to the pending-prompt FIFO. Per §4.6.1, overwrite is
// forbidden: multiple prompts queue and are processed in arrival order.
func (s *State) EnqueuePrompt(text string) {
	s.PendingPrompts = append(s.PendingPrompts, text)
}

// DequeuePrompt pops the next pending prompt, if any.
func (s *State) DequeuePrompt() (string, bool) {
	if len(s.PendingPrompts) == 0 {
		return "", false
	}
	text := s.PendingPrompts[0]
	s.PendingPrompts = s.PendingPrompts[1:]
	return text, true
}

// ShouldTerminate reports the IDLE→TERMINATED transition condition (§4.6.2):
// chat ended and the queue is drained.
func (s *State) ShouldTerminate() bool {
	return s.ChatEnded && len(s.PendingPrompts) == 0
}

// BeginTurn appends msg to history and marks it current/processing
// (§4.6.3 step 1).
func (s *State) BeginTurn(msg message.ConversationMessage) {
	s.Messages = append(s.Messages, msg)
	s.CurrentMessageID = msg.ID
	s.IsProcessing = true
	s.CurrentTrajectory = trajectory.New()
}

// EndTurn clears in-flight turn bookkeeping (§4.6.3 step 7). The caller has
// already filled in the agent side of the tail message in place.
func (s *State) EndTurn() {
	s.CurrentMessageID = ""
	s.IsProcessing = false
	s.CurrentTrajectory = nil
}

// TailMessage returns a pointer to the last message, for in-place agent-side
// completion. Only valid while IsProcessing.
func (s *State) TailMessage() *message.ConversationMessage {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// FullState is the §4.7.1 full_state() query result.
type FullState struct {
	Messages         []message.ConversationMessage
	IsProcessing     bool
	CurrentMessageID string
	ChatEnded        bool
}

// Snapshot produces a read-only FullState view.
func (s *State) Snapshot() FullState {
	return FullState{
		Messages:         append([]message.ConversationMessage(nil), s.Messages...),
		IsProcessing:     s.IsProcessing,
		CurrentMessageID: s.CurrentMessageID,
		ChatEnded:        s.ChatEnded,
	}
}

// Update is the §4.7.2 incremental_updates(last_seen_message_id) result.
type Update struct {
	NewMessages      []message.ConversationMessage
	UpdatedMessages  []message.ConversationMessage
	IsProcessing     bool
	CurrentMessageID string
	LastSeenMessageID string
}

// IncrementalUpdate implements the §4.7.2 rules. An empty lastSeenID is
// treated as "no prior observation".
func (s *State) IncrementalUpdate(lastSeenID string) Update {
	upd := Update{IsProcessing: s.IsProcessing, CurrentMessageID: s.CurrentMessageID}
	if len(s.Messages) > 0 {
		upd.LastSeenMessageID = s.Messages[len(s.Messages)-1].ID
	}

	if lastSeenID == "" {
		upd.NewMessages = append([]message.ConversationMessage(nil), s.Messages...)
		return upd
	}

	idx := -1
	for i, m := range s.Messages {
		if m.ID == lastSeenID {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Not found: treat as null, caller resets to a full resync.
		upd.NewMessages = append([]message.ConversationMessage(nil), s.Messages...)
		return upd
	}

	upd.NewMessages = append([]message.ConversationMessage(nil), s.Messages[idx+1:]...)
	if located := s.Messages[idx]; located.IsComplete() {
		upd.UpdatedMessages = []message.ConversationMessage{located}
	}
	return upd
}
