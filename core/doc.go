// Package core provides the foundational domain types and contracts used by
// agentworld. It defines the core abstractions for:
//
//   - Worlds (isolated scopes owning agents, chats and one private event bus)
//   - Agents (autonomous responders with config, status and bounded memory)
//   - Messages (the conversational unit exchanged through a world's bus)
//   - Events (immutable typed records with a closed payload union)
//   - The EventBus contract (scoped publish/subscribe with bounded history)
//   - The Store contract (persistence collaborator for worlds and agents)
//
// The package intentionally keeps implementation concerns (bus machinery,
// persistence backends, model providers, the response pipeline) out of scope,
// exposing small interfaces so higher packages can be wired without cycles.
package core
