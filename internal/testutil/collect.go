package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agentworld/core"
)

// CollectAgentMessages funnels agent-authored messages published on the
// world's message topic into a buffered channel.
func CollectAgentMessages(t testing.TB, w *core.World) <-chan core.Message {
	t.Helper()
	out := make(chan core.Message, 16)
	_, err := w.Bus().Subscribe(core.TopicMessages, func(e core.Event) {
		if msg, ok := e.MessageOf(); ok && msg.FromAgent() {
			out <- msg
		}
	}, nil)
	require.NoError(t, err)
	return out
}

// WaitForMessage returns the next collected message or fails the test after
// two seconds.
func WaitForMessage(t testing.TB, ch <-chan core.Message) core.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for agent response")
		return core.Message{}
	}
}

// PublishHuman appends a human message to the world transcript and publishes
// it on the message topic, the way the registry delivers one.
func PublishHuman(t testing.TB, w *core.World, content string) core.Message {
	t.Helper()
	msg := w.AppendMessage(core.NewMessage("alice", content))
	_, err := w.Bus().Publish(core.TopicMessages, core.NewMessageEvent(msg))
	require.NoError(t, err)
	return msg
}

// PublishHumanTo appends a human message addressed to one recipient and
// publishes it, the way the registry delivers a directed send.
func PublishHumanTo(t testing.TB, w *core.World, recipient, content string) core.Message {
	t.Helper()
	msg := core.NewMessage("alice", content)
	msg.Recipient = recipient
	msg = w.AppendMessage(msg)
	_, err := w.Bus().Publish(core.TopicMessages, core.NewMessageEvent(msg))
	require.NoError(t, err)
	return msg
}
