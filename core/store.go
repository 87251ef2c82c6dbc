package core

import "context"

// Store persists worlds and their agents across process restarts.
// Implementations must be safe for concurrent use.
//
// Absence is not an error: LoadWorld returns (nil, nil), DeleteWorld and
// DeleteAgent return (false, nil) for unknown ids, mirroring how the
// registry reports missing entities to callers.
type Store interface {
	// SaveWorld writes the full world snapshot, replacing any prior one.
	SaveWorld(ctx context.Context, w *World) error

	// LoadWorld reads a world snapshot. Unknown ids yield (nil, nil).
	LoadWorld(ctx context.Context, id string) (*World, error)

	// DeleteWorld removes a world and reports whether it existed.
	DeleteWorld(ctx context.Context, id string) (bool, error)

	// ListWorlds returns listing views of every stored world.
	ListWorlds(ctx context.Context) ([]WorldInfo, error)

	// SaveAgent writes one agent record without rewriting the whole
	// world. Saving into an unknown world is an error.
	SaveAgent(ctx context.Context, worldID string, a *Agent) error

	// LoadAllAgents returns every agent stored for the world. An unknown
	// world yields an empty list, not an error.
	LoadAllAgents(ctx context.Context, worldID string) ([]*Agent, error)

	// DeleteAgent removes one agent and reports whether it existed.
	DeleteAgent(ctx context.Context, worldID, id string) (bool, error)

	// Close releases any underlying resources.
	Close() error
}
