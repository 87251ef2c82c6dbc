package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "worlds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w := core.NewWorld("w1", "Persisted")
	w.MaxTurns = 3
	require.NoError(t, w.AddAgent(&core.Agent{ID: "bot", Name: "Bot", Provider: "anthropic", Model: "claude-3-5-sonnet", AutoReply: true}))
	w.AppendMessage(core.NewMessage("alice", "first"))
	w.AppendMessage(core.NewAgentMessage("bot", "Bot", "second"))
	w.AppendMessage(core.Message{Sender: "alice", Role: core.RoleUser, Content: "elsewhere", ChatID: "side"})

	require.NoError(t, s.SaveWorld(ctx, w))

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Persisted", got.Name)
	assert.Equal(t, 3, got.MaxTurns)

	agent, ok := got.Agent("bot")
	require.True(t, ok)
	assert.Equal(t, "anthropic", agent.Provider)

	main := got.Messages(core.DefaultChatID)
	require.Len(t, main, 2)
	assert.Equal(t, "first", main[0].Content)
	assert.Equal(t, "second", main[1].Content)
	assert.Len(t, got.Messages("side"), 1)
}

func TestSaveReplacesSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w := core.NewWorld("w1", "First")
	require.NoError(t, w.AddAgent(&core.Agent{ID: "old", Name: "Old"}))
	w.AppendMessage(core.NewMessage("alice", "v1"))
	require.NoError(t, s.SaveWorld(ctx, w))

	// Second save wins wholesale: removed agents and messages disappear.
	w2 := core.NewWorld("w1", "Second")
	require.NoError(t, w2.AddAgent(&core.Agent{ID: "new", Name: "New"}))
	require.NoError(t, s.SaveWorld(ctx, w2))

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Name)
	_, ok := got.Agent("old")
	assert.False(t, ok)
	_, ok = got.Agent("new")
	assert.True(t, ok)
	assert.Empty(t, got.Messages(core.DefaultChatID))
}

func TestLoadAbsentWorld(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadWorld(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteWorld(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w := core.NewWorld("w1", "Doomed")
	require.NoError(t, w.AddAgent(&core.Agent{ID: "bot", Name: "Bot"}))
	w.AppendMessage(core.NewMessage("alice", "bye"))
	require.NoError(t, s.SaveWorld(ctx, w))

	existed, err := s.DeleteWorld(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteWorld(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, existed)

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAgentOps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w := core.NewWorld("w1", "Home")
	require.NoError(t, w.AddAgent(&core.Agent{ID: "bot", Name: "Bot"}))
	require.NoError(t, s.SaveWorld(ctx, w))

	err := s.SaveAgent(ctx, "ghost", &core.Agent{ID: "x", Name: "X"})
	require.Error(t, err)

	require.NoError(t, s.SaveAgent(ctx, "w1", &core.Agent{ID: "scout", Name: "Scout"}))
	require.NoError(t, s.SaveAgent(ctx, "w1", &core.Agent{ID: "scout", Name: "Scout II"}))

	agents, err := s.LoadAllAgents(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, agents, 2)
	byID := map[string]*core.Agent{}
	for _, a := range agents {
		byID[a.ID] = a
	}
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
}

func TestListWorldsWithCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := core.NewWorld("a", "Alpha")
	require.NoError(t, a.AddAgent(&core.Agent{ID: "x", Name: "X"}))
	a.AppendMessage(core.NewMessage("alice", "m1"))
	a.AppendMessage(core.Message{Sender: "alice", Role: core.RoleUser, Content: "m2", ChatID: "side"})
	require.NoError(t, s.SaveWorld(ctx, a))

	b := core.NewWorld("b", "Beta")
	require.NoError(t, s.SaveWorld(ctx, b))

	infos, err := s.ListWorlds(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := map[string]core.WorldInfo{}
	for _, info := range infos {
		byID[info.ID] = info
	}
	assert.Equal(t, 1, byID["a"].AgentCount)
	assert.Equal(t, 2, byID["a"].ChatCount)
	assert.Equal(t, 2, byID["a"].MessageCount)
	assert.Equal(t, 0, byID["b"].AgentCount)
}
