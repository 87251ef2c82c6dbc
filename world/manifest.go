package world

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agentworld/core"
)

// Manifest declares a world and its initial agents in one document, the
// shape `agentworld world create -f` consumes.
type Manifest struct {
	World  Params             `yaml:"world"`
	Agents []core.AgentParams `yaml:"agents,omitempty"`
}

// Params aliases WorldParams for the manifest's yaml layout.
type Params = WorldParams

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// ApplyManifest creates the declared world and its agents, stopping at the
// first failure. The new world id is returned even when a later agent fails,
// so the partially built world can be inspected or deleted.
func (r *Registry) ApplyManifest(ctx context.Context, m *Manifest) (string, error) {
	id, err := r.CreateWorld(ctx, m.World)
	if err != nil {
		return "", err
	}
	for _, p := range m.Agents {
		if _, err := r.CreateAgent(ctx, id, p); err != nil {
			return id, err
		}
	}
	return id, nil
}
