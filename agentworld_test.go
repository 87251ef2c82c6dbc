package agentworld

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/core"
	"agentworld/internal/testutil"
	"agentworld/model"
	"agentworld/subscription"
	"agentworld/world"
)

func TestOrchestratorEndToEnd(t *testing.T) {
	mock := model.NewMockModel("mock-model", "mock")
	mock.AddResponse("hello room", "hello alice")

	var mu sync.Mutex
	var envelopes []subscription.Envelope
	o := New(func(opts *Options) {
		opts.Models = map[string]model.Model{"mock": mock}
		opts.Sink = func(e subscription.Envelope) {
			mu.Lock()
			envelopes = append(envelopes, e)
			mu.Unlock()
		}
	})

	ctx := context.Background()
	id, err := o.Worlds().CreateWorld(ctx, world.WorldParams{Name: "Lobby"})
	require.NoError(t, err)
	_, err = o.Worlds().CreateAgent(ctx, id, core.AgentParams{
		Name: "Greeter", Provider: "mock", Model: "mock-model",
	})
	require.NoError(t, err)

	res, err := o.Subscribe(ctx, "sub-1", id, "")
	require.NoError(t, err)
	assert.False(t, res.Stale)

	w, err := o.Worlds().LoadWorld(ctx, id)
	require.NoError(t, err)
	responses := testutil.CollectAgentMessages(t, w)

	_, err = o.Broadcast(ctx, id, "hello room", "alice", "")
	require.NoError(t, err)

	msg := testutil.WaitForMessage(t, responses)
	assert.Equal(t, "hello alice", msg.Content)
	assert.Equal(t, "greeter", msg.FromAgentID)

	// The subscription relayed the human message, the stream chunks and the
	// final response.
	mu.Lock()
	defer mu.Unlock()
	var sawHuman, sawSSE, sawResponse bool
	for _, env := range envelopes {
		assert.Equal(t, "sub-1", env.SubscriptionID)
		assert.Equal(t, id, env.WorldID)
		switch p := env.Event.Payload.(type) {
		case core.MessagePayload:
			if p.Message.FromAgent() {
				sawResponse = true
			} else if p.Message.FromHuman() {
				sawHuman = true
			}
		case core.SSEPayload:
			sawSSE = true
		}
	}
	assert.True(t, sawHuman)
	assert.True(t, sawSSE)
	assert.True(t, sawResponse)
}

func TestOrchestratorDefaults(t *testing.T) {
	o := New()
	require.NotNil(t, o.Worlds())
	require.NotNil(t, o.Runtime())
	require.NotNil(t, o.Subscriptions())
	require.NotNil(t, o.Approvals())
	assert.Same(t, o.Approvals(), o.Runtime().Gate())

	ctx := context.Background()
	o.RegisterModel("mock", model.NewMockModel("mock-model", "mock"))
	id, err := o.Worlds().CreateWorld(ctx, world.WorldParams{Name: "Later"})
	require.NoError(t, err)
	_, err = o.Worlds().CreateAgent(ctx, id, core.AgentParams{
		Name: "Late Joiner", Provider: "mock", Model: "mock-model",
	})
	require.NoError(t, err)

	_, err = o.Send(ctx, id, "late-joiner", "you there?", "alice", "")
	require.NoError(t, err)
}
