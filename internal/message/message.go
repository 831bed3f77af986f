// Package message implements the ConversationMessage data model: one full
// conversational turn, with its computed completion fields.
package message

import "time"

// ConversationMessage is one full conversational turn: the user side is
// always present once accepted; the agent side is filled in exactly once,
// either with an answer or with an error.
type ConversationMessage struct {
	ID                string
	UserMessage       string
	UserTimestamp     time.Time
	AgentMessage      string
	AgentTimestamp    time.Time
	HasAgentTimestamp bool
	ToolsUsed         []string
	ProcessingTimeMS  *int64
	Error             string
}

// IsComplete reports whether the agent side has been filled in, either with
// an answer or with an error.
func (m ConversationMessage) IsComplete() bool {
	return m.AgentMessage != "" || m.Error != ""
}

// IsError reports whether the message completed with an error.
func (m ConversationMessage) IsError() bool {
	return m.Error != ""
}

// Complete fills the agent side of the message with a successful answer,
// deriving ProcessingTimeMS from UserTimestamp. It is the code path that
// sets AgentMessage; the "filled exactly once" invariant rests on callers
// calling this once per message, since the method does not guard against a
// second call.
func (m *ConversationMessage) Complete(answer string, toolsUsed []string, now time.Time) {
	m.AgentMessage = answer
	m.AgentTimestamp = now
	m.HasAgentTimestamp = true
	m.ToolsUsed = toolsUsed
	elapsed := now.Sub(m.UserTimestamp).Milliseconds()
	m.ProcessingTimeMS = &elapsed
}

// Fail fills the agent side of the message with a turn-level error. Per
// §4.6.5 / §7, this never panics the workflow; the turn is recorded as
// failed and processing continues with the next queued prompt.
func (m *ConversationMessage) Fail(errMsg string, now time.Time) {
	m.Error = errMsg
	m.AgentTimestamp = now
	m.HasAgentTimestamp = true
}
