package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"agentworld/core"
)

func TestShouldRespond(t *testing.T) {
	self := &core.Agent{ID: "research-bot", Name: "Research Bot", Status: core.AgentActive}

	tests := []struct {
		name string
		msg  core.Message
		want bool
	}{
		{
			name: "human message without mention",
			msg:  core.Message{Sender: "alice", Role: core.RoleUser, Content: "what do you all think?"},
			want: true,
		},
		{
			name: "system message",
			msg:  core.NewSystemMessage("the world is shutting down"),
			want: true,
		},
		{
			name: "system sender with user role",
			msg:  core.Message{Sender: "System", Role: core.RoleUser, Content: "notice"},
			want: true,
		},
		{
			name: "peer agent without mention",
			msg:  core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Role: core.RoleAssistant, Content: "drafting the intro now"},
			want: false,
		},
		{
			name: "peer agent with matching mention",
			msg:  core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Role: core.RoleAssistant, Content: "@research-bot can you verify this?"},
			want: true,
		},
		{
			name: "peer agent mentioning someone else",
			msg:  core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Role: core.RoleAssistant, Content: "@editor-bot your turn"},
			want: false,
		},
		{
			name: "peer agent with case-insensitive mention",
			msg:  core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Role: core.RoleAssistant, Content: "asking @Research-Bot directly"},
			want: true,
		},
		{
			name: "own message by agent id",
			msg:  core.Message{Sender: "Research Bot", FromAgentID: "research-bot", Role: core.RoleAssistant, Content: "my own reply"},
			want: false,
		},
		{
			name: "own message by sender name only",
			msg:  core.Message{Sender: "research bot", Role: core.RoleUser, Content: "echoed through another channel"},
			want: false,
		},
		{
			name: "own system-looking message",
			msg:  core.Message{Sender: "research-bot", FromAgentID: "research-bot", Role: core.RoleSystem, Content: "self system note"},
			want: false,
		},
		{
			name: "directed to this agent",
			msg:  core.Message{Sender: "alice", Role: core.RoleUser, Recipient: "Research Bot", Content: "direct question"},
			want: true,
		},
		{
			name: "directed to another agent",
			msg:  core.Message{Sender: "alice", Role: core.RoleUser, Recipient: "editor-bot", Content: "direct question"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRespond(self, tt.msg))
		})
	}
}

func TestShouldRespondMinimalAgentAnswersHumans(t *testing.T) {
	// An agent built from the required params only, nothing else set.
	plain := &core.Agent{ID: "bot", Name: "Bot", Status: core.AgentActive, Provider: "mock", Model: "mock-model"}

	human := core.NewMessage("alice", "hello everyone")
	assert.True(t, ShouldRespond(plain, human))

	peer := core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Content: "hello everyone"}
	assert.False(t, ShouldRespond(plain, peer))
}

func TestShouldRespondAutoReplyAnswersPeers(t *testing.T) {
	chatty := &core.Agent{ID: "chatty-bot", Name: "Chatty Bot", Status: core.AgentActive, AutoReply: true}

	peer := core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Content: "no mention here"}
	assert.True(t, ShouldRespond(chatty, peer))

	own := core.Message{Sender: "Chatty Bot", FromAgentID: "chatty-bot", Role: core.RoleAssistant, Content: "echo"}
	assert.False(t, ShouldRespond(chatty, own))

	directedAway := core.Message{Sender: "writer-bot", FromAgentID: "writer-bot", Recipient: "editor-bot", Content: "for you"}
	assert.False(t, ShouldRespond(chatty, directedAway))
}

func TestMentions(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta-2"}, Mentions("hey @alpha and @beta-2, sync up"))
	assert.Empty(t, Mentions("no mentions here"))
	assert.Equal(t, []string{"bot"}, Mentions("email me@example.com but ping @bot"))
}

func TestMentioned(t *testing.T) {
	a := &core.Agent{ID: "agent-7", Name: "Data Miner"}

	assert.True(t, Mentioned(a, "ping @agent-7"))
	assert.True(t, Mentioned(a, "ping @data-miner"))
	assert.True(t, Mentioned(a, "ping @Data-Miner"))
	assert.False(t, Mentioned(a, "ping @data"))
	assert.False(t, Mentioned(a, "no mention of the miner"))
}
