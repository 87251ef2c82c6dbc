// Package agent decides when agents speak and produces their responses.
//
// The eligibility filter (ShouldRespond) encodes the reply rules: never to
// yourself, always to system notices, to humans freely, to peer agents when
// @mentioned or when the agent opts into auto-reply. The Runtime wires eligible agents to their world's event
// bus, assembles prompts from memory, streams completions as SSE events,
// and publishes the finished response back into the world, bounded by the
// chat's turn limit and cancellable per chat.
package agent
