package world

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/core"
	"agentworld/storage"
)

func TestApplyManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	doc := `world:
  name: Writers Room
  maxTurns: 6
agents:
  - name: Drafter
    provider: mock
    model: mock-model
    autoReply: true
  - name: Critic
    provider: mock
    model: mock-model
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "Writers Room", m.World.Name)
	require.Len(t, m.Agents, 2)

	ctx := context.Background()
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	id, err := r.ApplyManifest(ctx, m)
	require.NoError(t, err)

	w, err := r.LoadWorld(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "Writers Room", w.Name)
	assert.Equal(t, 6, w.MaxTurns)

	agents, err := r.GetAgents(ctx, id)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "critic", agents[0].ID)
	assert.Equal(t, "drafter", agents[1].ID)
	assert.True(t, agents[1].AutoReply)
	assert.False(t, agents[0].AutoReply)
}

func TestLoadManifestErrors(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("world: [not a mapping"), 0o644))
	_, err = LoadManifest(bad)
	require.Error(t, err)
}

func TestApplyManifestStopsAtFirstBadAgent(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	m := &Manifest{
		World: Params{Name: "Half Built"},
		Agents: []core.AgentParams{
			{Name: "Good", Provider: "mock", Model: "mock-model"},
			{Name: "Bad"},
		},
	}
	id, err := r.ApplyManifest(ctx, m)
	require.ErrorContains(t, err, "provider")
	require.NotEmpty(t, id)

	// The world and the agents created before the failure survive.
	agents, err := r.GetAgents(ctx, id)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "good", agents[0].ID)
}
