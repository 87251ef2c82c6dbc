// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside AgentWorld.
//
// Core goals:
//   - Unify generation behind a single streaming interface (Model.Stream)
//   - Keep request/chunk shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (agents, worlds) remain decoupled from vendor SDKs.
package model
