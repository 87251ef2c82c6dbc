package core

import (
	"strings"
	"time"
)

// Role classifies the author of a message for prompt assembly and reply
// decisions.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversational unit inside a world chat. Sender is the
// display name of the author; FromAgentID is set only when the author is an
// agent, which is how receivers tell agents and humans apart.
type Message struct {
	MessageID        string    `json:"messageId" yaml:"messageId"`
	ChatID           string    `json:"chatId,omitempty" yaml:"chatId,omitempty"`
	Role             Role      `json:"role" yaml:"role"`
	Sender           string    `json:"sender" yaml:"sender"`
	Recipient        string    `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Content          string    `json:"content" yaml:"content"`
	ReplyToMessageID string    `json:"replyToMessageId,omitempty" yaml:"replyToMessageId,omitempty"`
	FromAgentID      string    `json:"fromAgentId,omitempty" yaml:"fromAgentId,omitempty"`
	CreatedAt        time.Time `json:"createdAt" yaml:"createdAt"`
}

// NewMessage builds a user message with a fresh id and timestamp.
func NewMessage(sender, content string) Message {
	return Message{
		MessageID: NewID(),
		Role:      RoleUser,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAgentMessage builds an assistant message authored by the given agent.
func NewAgentMessage(agentID, sender, content string) Message {
	m := NewMessage(sender, content)
	m.Role = RoleAssistant
	m.FromAgentID = agentID
	return m
}

// NewSystemMessage builds a system message, used for world notices that
// every agent should react to.
func NewSystemMessage(content string) Message {
	m := NewMessage("system", content)
	m.Role = RoleSystem
	return m
}

// FromAgent reports whether the message was authored by an agent.
func (m Message) FromAgent() bool { return m.FromAgentID != "" }

// FromSystem reports whether the message is a system notice. Both the role
// and a literal "system" sender mark one, since external callers may set
// either.
func (m Message) FromSystem() bool {
	return m.Role == RoleSystem || strings.EqualFold(m.Sender, "system")
}

// FromHuman reports whether the message was authored by a human user, which
// is everything that is neither an agent message nor a system notice.
func (m Message) FromHuman() bool { return !m.FromAgent() && !m.FromSystem() }
