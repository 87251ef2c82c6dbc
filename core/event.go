package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the closed set of event categories a world's bus
// carries. The payload shape of an event is decided by its type once, at
// publish time.
type EventType string

const (
	// EventMessage carries a conversational Message between participants.
	EventMessage EventType = "message"
	// EventWorld carries a world lifecycle notification (created, updated,
	// agent added/removed, turn limit reached, ...).
	EventWorld EventType = "world"
	// EventSSE carries a streaming fragment or streaming error produced by
	// an in-flight model call, correlated by message id.
	EventSSE EventType = "sse"
)

// Topic names the routing categories of a world's bus. Subscribers bind to
// exactly one topic; publishes deliver to that topic's subscribers only.
const (
	TopicMessages = "messages"
	TopicWorld    = "world"
	TopicSSE      = "sse"
)

// Event is the immutable unit delivered through a world's bus. Identity is
// the ID; ordering is publish order within one bus. After publish it must be
// treated as read-only.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Payload is a closed sum over the per-type event payload shapes. Concrete
// payloads implement the unexported marker so the set cannot grow outside
// this package.
type Payload interface{ isPayload() }

// MessagePayload wraps a conversational Message for EventMessage events.
type MessagePayload struct {
	Message Message `json:"message"`
}

func (MessagePayload) isPayload() {}

// WorldPayload describes a world lifecycle notification.
type WorldPayload struct {
	Action  string `json:"action"`
	WorldID string `json:"worldId"`
	AgentID string `json:"agentId,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (WorldPayload) isPayload() {}

// SSEPayload is a streaming fragment (or terminal streaming error) emitted
// while a model call is in flight. MessageID correlates all fragments of one
// response.
type SSEPayload struct {
	AgentID   string `json:"agentId"`
	MessageID string `json:"messageId"`
	Delta     string `json:"delta,omitempty"`
	Final     bool   `json:"final,omitempty"`
	ErrorText string `json:"error,omitempty"`
}

func (SSEPayload) isPayload() {}

// World lifecycle actions used in WorldPayload.Action.
const (
	WorldActionCreated      = "created"
	WorldActionUpdated      = "updated"
	WorldActionDeleted      = "deleted"
	WorldActionAgentAdded   = "agent-added"
	WorldActionAgentUpdated = "agent-updated"
	WorldActionAgentRemoved = "agent-removed"
	WorldActionTurnLimit    = "turn-limit"
)

// NewID generates a new unique identifier for events, messages, worlds and
// approval requests.
func NewID() string { return uuid.NewString() }

// NewMessageEvent builds an EventMessage wrapping msg. ID and timestamp are
// assigned by the bus at publish time, so both are left zero here.
func NewMessageEvent(msg Message) Event {
	return Event{Type: EventMessage, Payload: MessagePayload{Message: msg}}
}

// NewWorldEvent builds an EventWorld notification for the given action.
func NewWorldEvent(worldID, action string) Event {
	return Event{Type: EventWorld, Payload: WorldPayload{Action: action, WorldID: worldID}}
}

// NewSSEEvent builds a streaming fragment event correlated by messageID.
func NewSSEEvent(agentID, messageID, delta string, final bool) Event {
	return Event{Type: EventSSE, Payload: SSEPayload{AgentID: agentID, MessageID: messageID, Delta: delta, Final: final}}
}

// NewSSEErrorEvent builds a terminal streaming error event for observers.
// The underlying failure is still returned to the caller; this event only
// makes it visible on the bus.
func NewSSEErrorEvent(agentID, messageID, errText string) Event {
	return Event{Type: EventSSE, Payload: SSEPayload{AgentID: agentID, MessageID: messageID, ErrorText: errText, Final: true}}
}

// MessageOf extracts the wrapped Message when the event carries one.
func (e Event) MessageOf() (Message, bool) {
	if p, ok := e.Payload.(MessagePayload); ok {
		return p.Message, true
	}
	return Message{}, false
}

// SenderOf reports the logical sender of the event for filter matching:
// the message sender for message events, the agent id for SSE events, and
// empty for world events.
func (e Event) SenderOf() string {
	switch p := e.Payload.(type) {
	case MessagePayload:
		return p.Message.Sender
	case SSEPayload:
		return p.AgentID
	default:
		return ""
	}
}

// RecipientOf reports the addressed recipient when the payload carries one.
func (e Event) RecipientOf() string {
	if p, ok := e.Payload.(MessagePayload); ok {
		return p.Message.Recipient
	}
	return ""
}
