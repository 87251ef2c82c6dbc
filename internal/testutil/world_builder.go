package testutil

import (
	"agentworld/bus"
	"agentworld/core"
)

// WorldBuilder helps construct bus-attached worlds with fluent chaining for
// tests. Example:
//
//	w := NewWorldBuilder("w1", "Test World").MaxTurns(2).ActiveAgent("bot", "Bot").Build()
type WorldBuilder struct {
	id       string
	name     string
	maxTurns int
	history  int
	agents   []*core.Agent
	messages []core.Message
}

// NewWorldBuilder creates a new builder for a world with the given id and
// name. Use chainable methods then call Build.
func NewWorldBuilder(id, name string) *WorldBuilder {
	return &WorldBuilder{id: id, name: name}
}

// MaxTurns bounds consecutive agent turns per chat (chainable).
func (b *WorldBuilder) MaxTurns(n int) *WorldBuilder { b.maxTurns = n; return b }

// History sets the bus event history capacity (chainable).
func (b *WorldBuilder) History(capacity int) *WorldBuilder { b.history = capacity; return b }

// Agent appends a prebuilt agent record (chainable).
func (b *WorldBuilder) Agent(a *core.Agent) *WorldBuilder {
	b.agents = append(b.agents, a)
	return b
}

// ActiveAgent appends an active agent on the "mock" provider that answers
// humans freely and peers only when mentioned (chainable).
func (b *WorldBuilder) ActiveAgent(id, name string) *WorldBuilder {
	return b.Agent(&core.Agent{
		ID:       id,
		Name:     name,
		Status:   core.AgentActive,
		Provider: "mock",
	})
}

// AutoReplyAgent appends an active agent that also answers peer agents
// without a mention (chainable).
func (b *WorldBuilder) AutoReplyAgent(id, name string) *WorldBuilder {
	return b.Agent(&core.Agent{
		ID:        id,
		Name:      name,
		Status:    core.AgentActive,
		Provider:  "mock",
		AutoReply: true,
	})
}

// Message seeds the transcript with a message (chainable).
func (b *WorldBuilder) Message(msg core.Message) *WorldBuilder {
	b.messages = append(b.messages, msg)
	return b
}

// Build constructs the world with a fresh bus attached and the declared
// agents and messages in place.
func (b *WorldBuilder) Build() *core.World {
	w := core.NewWorld(b.id, b.name)
	w.MaxTurns = b.maxTurns
	w.AttachBus(bus.New(func(o *bus.Options) {
		if b.history > 0 {
			o.HistoryCapacity = b.history
		}
	}))
	if len(b.agents) > 0 {
		w.ReplaceAgents(b.agents)
	}
	for _, msg := range b.messages {
		w.AppendMessage(msg)
	}
	return w
}
