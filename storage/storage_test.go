package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/core"
)

func sampleWorld(t *testing.T) *core.World {
	t.Helper()
	w := core.NewWorld("w1", "Sample")
	w.Description = "a test world"
	w.MaxTurns = 5
	require.NoError(t, w.AddAgent(&core.Agent{ID: "bot", Name: "Bot", Provider: "mock", AutoReply: true}))
	w.AppendMessage(core.NewMessage("alice", "hello"))
	w.AppendMessage(core.NewAgentMessage("bot", "Bot", "hi alice"))
	return w
}

func roundtrip(t *testing.T, s core.Store) {
	t.Helper()
	ctx := context.Background()

	w := sampleWorld(t)
	require.NoError(t, s.SaveWorld(ctx, w))

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sample", got.Name)
	assert.Equal(t, "a test world", got.Description)
	assert.Equal(t, 5, got.MaxTurns)

	agent, ok := got.Agent("bot")
	require.True(t, ok)
	assert.Equal(t, "Bot", agent.Name)
	assert.True(t, agent.AutoReply)

	msgs := got.Messages(core.DefaultChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "bot", msgs[1].FromAgentID)

	// A loaded world must accept further writes.
	got.AppendMessage(core.NewMessage("alice", "again"))
	require.NoError(t, got.AddAgent(&core.Agent{ID: "second", Name: "Second"}))

	absent, err := s.LoadWorld(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, absent)

	infos, err := s.ListWorlds(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "w1", infos[0].ID)
	assert.Equal(t, 1, infos[0].AgentCount)
	assert.Equal(t, 2, infos[0].MessageCount)

	existed, err := s.DeleteWorld(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteWorld(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, existed)

	gone, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func agentOps(t *testing.T, s core.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.SaveWorld(ctx, sampleWorld(t)))

	err := s.SaveAgent(ctx, "ghost", &core.Agent{ID: "x", Name: "X"})
	require.Error(t, err)

	require.NoError(t, s.SaveAgent(ctx, "w1", &core.Agent{ID: "scout", Name: "Scout", Provider: "mock"}))

	agents, err := s.LoadAllAgents(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, agents, 2)

	// Saving again with the same id replaces, never duplicates.
	require.NoError(t, s.SaveAgent(ctx, "w1", &core.Agent{ID: "scout", Name: "Scout II", Provider: "mock"}))
	agents, err = s.LoadAllAgents(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, agents, 2)
	byID := map[string]*core.Agent{}
	for _, a := range agents {
		byID[a.ID] = a
	}
	require.Contains(t, byID, "scout")
	assert.Equal(t, "Scout II", byID["scout"].Name)

	none, err := s.LoadAllAgents(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)

	existed, err := s.DeleteAgent(ctx, "w1", "scout")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteAgent(ctx, "w1", "scout")
	require.NoError(t, err)
	assert.False(t, existed)

	agents, err = s.LoadAllAgents(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "bot", agents[0].ID)
}

func TestMemoryStoreRoundtrip(t *testing.T) {
	roundtrip(t, NewMemoryStore())
}

func TestFileStoreRoundtrip(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "worlds"))
	require.NoError(t, err)
	roundtrip(t, s)
}

func TestMemoryStoreAgentOps(t *testing.T) {
	agentOps(t, NewMemoryStore())
}

func TestFileStoreAgentOps(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "worlds"))
	require.NoError(t, err)
	agentOps(t, s)
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	w := sampleWorld(t)
	require.NoError(t, s.SaveWorld(ctx, w))

	// Mutations after save must not leak into the stored snapshot.
	w.AppendMessage(core.NewMessage("alice", "post-save"))

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, got.Messages(core.DefaultChatID), 2)

	// Mutations of a loaded copy must not leak either.
	got.AppendMessage(core.NewMessage("alice", "post-load"))
	again, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, again.Messages(core.DefaultChatID), 2)
}

func TestFileStoreWritesOneDocumentPerWorld(t *testing.T) {
	root := filepath.Join(t.TempDir(), "worlds")
	s, err := NewFileStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveWorld(ctx, core.NewWorld("alpha", "Alpha")))
	require.NoError(t, s.SaveWorld(ctx, core.NewWorld("beta", "Beta")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"alpha.yaml", "beta.yaml"}, names)

	infos, err := s.ListWorlds(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestFileStoreSkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.yaml"), []byte(":::"), 0o644))
	require.NoError(t, s.SaveWorld(ctx, core.NewWorld("ok", "OK")))

	infos, err := s.ListWorlds(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "ok", infos[0].ID)
}
