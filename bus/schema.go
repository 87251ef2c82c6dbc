package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"agentworld/core"
)

// Payload schemas, one per event type. Compiled once on first use. The
// structural Go types already constrain the shapes; the schemas add the
// field-level rules (required fields, non-empty ids, role enum) that a
// struct literal cannot enforce.
const (
	messagePayloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {
      "type": "object",
      "required": ["sender", "content", "role"],
      "properties": {
        "sender": {"type": "string", "minLength": 1},
        "content": {"type": "string"},
        "role": {"type": "string", "enum": ["system", "user", "assistant"]},
        "messageId": {"type": "string"},
        "chatId": {"type": "string"},
        "recipient": {"type": "string"},
        "replyToMessageId": {"type": "string"},
        "fromAgentId": {"type": "string"}
      }
    }
  }
}`

	worldPayloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["action", "worldId"],
  "properties": {
    "action": {"type": "string", "minLength": 1},
    "worldId": {"type": "string", "minLength": 1},
    "agentId": {"type": "string"},
    "detail": {"type": "string"}
  }
}`

	ssePayloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["agentId", "messageId"],
  "properties": {
    "agentId": {"type": "string", "minLength": 1},
    "messageId": {"type": "string", "minLength": 1},
    "delta": {"type": "string"},
    "final": {"type": "boolean"},
    "error": {"type": "string"}
  }
}`
)

var (
	compileOnce    sync.Once
	payloadSchemas map[core.EventType]*jsonschema.Schema
)

func compileSchemas() {
	compileOnce.Do(func() {
		compile := func(name, src string) *jsonschema.Schema {
			c := jsonschema.NewCompiler()
			if err := c.AddResource(name, strings.NewReader(src)); err != nil {
				panic(fmt.Sprintf("bus: add schema %s: %v", name, err))
			}
			return c.MustCompile(name)
		}
		payloadSchemas = map[core.EventType]*jsonschema.Schema{
			core.EventMessage: compile("message.json", messagePayloadSchema),
			core.EventWorld:   compile("world.json", worldPayloadSchema),
			core.EventSSE:     compile("sse.json", ssePayloadSchema),
		}
	})
}

// validate checks structural agreement between event type and payload, then
// runs the type's JSON schema over the serialized payload. A nil return
// means the event may be delivered.
func validate(e core.Event) *core.ValidationError {
	compileSchemas()

	schema, known := payloadSchemas[e.Type]
	if !known {
		return &core.ValidationError{Type: e.Type, Reasons: []string{fmt.Sprintf("unknown event type %q", e.Type)}}
	}
	if e.Payload == nil {
		return &core.ValidationError{Type: e.Type, Reasons: []string{"missing payload"}}
	}
	if !payloadMatchesType(e) {
		return &core.ValidationError{Type: e.Type, Reasons: []string{fmt.Sprintf("payload %T does not belong to event type %q", e.Payload, e.Type)}}
	}

	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return &core.ValidationError{Type: e.Type, Reasons: []string{fmt.Sprintf("payload not serializable: %v", err)}}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &core.ValidationError{Type: e.Type, Reasons: []string{fmt.Sprintf("payload not decodable: %v", err)}}
	}
	if err := schema.Validate(doc); err != nil {
		return &core.ValidationError{Type: e.Type, Reasons: schemaReasons(err)}
	}
	return nil
}

func payloadMatchesType(e core.Event) bool {
	switch e.Payload.(type) {
	case core.MessagePayload:
		return e.Type == core.EventMessage
	case core.WorldPayload:
		return e.Type == core.EventWorld
	case core.SSEPayload:
		return e.Type == core.EventSSE
	default:
		return false
	}
}

// schemaReasons flattens a jsonschema validation error into one reason per
// leaf cause.
func schemaReasons(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := v.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, v.Message))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
