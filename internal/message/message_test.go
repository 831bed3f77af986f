package message_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayrun/convorch/internal/message"
)

func TestCompleteSetsInvariants(t *testing.T) {
	start := time.Now()
	m := message.ConversationMessage{ID: "1", UserMessage: "hi", UserTimestamp: start}
	require.False(t, m.IsComplete())

	m.Complete("hello", []string{"weather_forecast"}, start.Add(250*time.Millisecond))
	require.True(t, m.IsComplete())
	require.False(t, m.IsError())
	require.NotNil(t, m.ProcessingTimeMS)
	require.GreaterOrEqual(t, *m.ProcessingTimeMS, int64(250))
	require.True(t, m.HasAgentTimestamp)
}

func TestFailSetsInvariants(t *testing.T) {
	start := time.Now()
	m := message.ConversationMessage{ID: "1", UserMessage: "hi", UserTimestamp: start}
	m.Fail("extract failed", start.Add(time.Second))

	require.True(t, m.IsComplete())
	require.True(t, m.IsError())
	require.Empty(t, m.AgentMessage)
	require.True(t, m.HasAgentTimestamp)
}
