package anthropic

import (
	"context"
	"testing"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/core"
	"agentworld/model"
)

func TestEmitDeliversWhileContextLive(t *testing.T) {
	out := make(chan model.Chunk, 1)
	require.True(t, emit(context.Background(), out, model.Chunk{Delta: "x"}))
	assert.Equal(t, "x", (<-out).Delta)
}

func TestEmitGivesUpOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan model.Chunk) // nobody reads
	done := make(chan bool, 1)
	go func() { done <- emit(ctx, out, model.Chunk{Delta: "x"}) }()

	select {
	case delivered := <-done:
		assert.False(t, delivered)
	case <-time.After(time.Second):
		t.Fatal("emit stayed blocked on an abandoned channel")
	}
}

func TestBuildMessagesFoldsRolesAndSkipsEmpty(t *testing.T) {
	messages := buildMessages([]core.Message{
		{Role: core.RoleUser, Sender: "alice", Content: "hello"},
		{Role: core.RoleAssistant, Content: "hi there"},
		{Role: core.RoleUser, Sender: "bob", Content: ""},
		{Role: core.RoleSystem, Sender: "System", Content: "notice"},
	})
	require.Len(t, messages, 3)
	assert.Equal(t, anthropicsdk.MessageParamRoleUser, messages[0].Role)
	assert.Equal(t, anthropicsdk.MessageParamRoleAssistant, messages[1].Role)
	// System entries inside the window become attributed user turns.
	assert.Equal(t, anthropicsdk.MessageParamRoleUser, messages[2].Role)
}
