package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageEvent(t *testing.T) {
	msg := NewMessage("alice", "hello")
	e := NewMessageEvent(msg)

	assert.Equal(t, EventMessage, e.Type)

	got, ok := e.MessageOf()
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "alice", e.SenderOf())
}

func TestNewSSEEvent(t *testing.T) {
	e := NewSSEEvent("agent-1", "msg-1", "chunk", false)

	assert.Equal(t, EventSSE, e.Type)
	assert.Equal(t, "agent-1", e.SenderOf())

	p, ok := e.Payload.(SSEPayload)
	require.True(t, ok)
	assert.Equal(t, "msg-1", p.MessageID)
	assert.False(t, p.Final)

	_, ok = e.MessageOf()
	assert.False(t, ok)
}

func TestNewSSEErrorEvent(t *testing.T) {
	e := NewSSEErrorEvent("agent-1", "msg-1", "boom")

	p, ok := e.Payload.(SSEPayload)
	require.True(t, ok)
	assert.Equal(t, "boom", p.ErrorText)
	assert.True(t, p.Final)
}

func TestNewWorldEvent(t *testing.T) {
	e := NewWorldEvent("w1", WorldActionCreated)

	assert.Equal(t, EventWorld, e.Type)
	assert.Empty(t, e.SenderOf())

	p, ok := e.Payload.(WorldPayload)
	require.True(t, ok)
	assert.Equal(t, "w1", p.WorldID)
	assert.Equal(t, WorldActionCreated, p.Action)
}

func TestFilterMatch(t *testing.T) {
	msg := NewMessage("alice", "hi")
	msg.Recipient = "bob"
	e := NewMessageEvent(msg)

	assert.True(t, (*Filter)(nil).Match(e))
	assert.True(t, (&Filter{Types: []EventType{EventMessage}}).Match(e))
	assert.False(t, (&Filter{Types: []EventType{EventSSE}}).Match(e))
	assert.True(t, (&Filter{Sender: "alice"}).Match(e))
	assert.False(t, (&Filter{Sender: "carol"}).Match(e))
	assert.True(t, (&Filter{Recipient: "bob"}).Match(e))
	assert.False(t, (&Filter{Recipient: "alice"}).Match(e))
	assert.True(t, (&Filter{Types: []EventType{EventMessage}, Sender: "alice", Recipient: "bob"}).Match(e))
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestMessageClassification(t *testing.T) {
	human := NewMessage("alice", "hi")
	assert.True(t, human.FromHuman())
	assert.False(t, human.FromAgent())
	assert.False(t, human.FromSystem())

	agent := NewAgentMessage("bot-1", "Bot", "hi")
	assert.True(t, agent.FromAgent())
	assert.False(t, agent.FromHuman())

	system := NewSystemMessage("world updated")
	assert.True(t, system.FromSystem())
	assert.False(t, system.FromHuman())

	// A literal "system" sender counts even when the role says otherwise.
	odd := NewMessage("System", "notice")
	assert.True(t, odd.FromSystem())
	assert.False(t, odd.FromHuman())
}
