package testutil

import (
	"agentworld/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().From("alice").Content("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	sender    string
	agentID   string
	system    bool
	content   string
	chatID    string
	recipient string
	replyTo   string
}

// NewMessageBuilder creates a builder with default sender "alice".
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{sender: "alice"} }

// From sets the sender display name (chainable).
func (b *MessageBuilder) From(sender string) *MessageBuilder { b.sender = sender; return b }

// Agent marks the message as authored by the given agent id (chainable).
func (b *MessageBuilder) Agent(agentID string) *MessageBuilder { b.agentID = agentID; return b }

// System marks the message as a system notice (chainable).
func (b *MessageBuilder) System() *MessageBuilder { b.system = true; return b }

// Content sets the message body (chainable).
func (b *MessageBuilder) Content(c string) *MessageBuilder { b.content = c; return b }

// Chat routes the message to a named chat instead of the default (chainable).
func (b *MessageBuilder) Chat(chatID string) *MessageBuilder { b.chatID = chatID; return b }

// To addresses the message at one recipient (chainable).
func (b *MessageBuilder) To(recipient string) *MessageBuilder { b.recipient = recipient; return b }

// ReplyTo links the message to the one it answers (chainable).
func (b *MessageBuilder) ReplyTo(messageID string) *MessageBuilder { b.replyTo = messageID; return b }

// Build constructs the core.Message value.
func (b *MessageBuilder) Build() core.Message {
	var msg core.Message
	switch {
	case b.system:
		msg = core.NewSystemMessage(b.content)
	case b.agentID != "":
		msg = core.NewAgentMessage(b.agentID, b.sender, b.content)
	default:
		msg = core.NewMessage(b.sender, b.content)
	}
	msg.ChatID = b.chatID
	msg.Recipient = b.recipient
	msg.ReplyToMessageID = b.replyTo
	return msg
}
