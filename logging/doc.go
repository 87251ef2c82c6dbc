// Package logging provides a minimal logging interface and adapters for AgentWorld.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the registry and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - WorldLogger with world/chat/component context and domain helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	registry := world.NewRegistry(runtime, func(o *world.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
