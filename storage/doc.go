// Package storage provides core.Store implementations for world
// persistence.
//
//   - MemoryStore: process-local map, clone-on-write, for tests and demos
//   - FileStore: one YAML document per world under a root directory
//
// A SQLite-backed store lives in the storage/sqlite subpackage so the
// driver dependency stays out of binaries that do not need it.
//
// All implementations share the same absence convention: LoadWorld returns
// (nil, nil) and DeleteWorld returns (false, nil) for unknown ids.
package storage
