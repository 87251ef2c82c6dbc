// Package world manages the lifecycle of worlds and their agents.
//
// A Registry is the front door of the system: it creates worlds, loads them
// from storage on first access, wires their agents to the runtime, and
// routes human messages onto the right world's bus. Each world owns a
// private event bus, so nothing a registry does on one world can be
// observed from another.
package world
