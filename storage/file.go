package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"agentworld/core"
)

// FileStore persists each world as one YAML document under a root
// directory, named <id>.yaml. Writes go through a temp file and rename so a
// crash mid-save never leaves a truncated document behind.
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ core.Store = (*FileStore)(nil)

// NewFileStore creates the root directory when missing and returns a store
// over it.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.root, id+".yaml")
}

// SaveWorld writes the world snapshot, replacing any prior document.
func (s *FileStore) SaveWorld(ctx context.Context, w *core.World) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(w.Clone())
	if err != nil {
		return fmt.Errorf("encode world %s: %w", w.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(w.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write world %s: %w", w.ID, err)
	}
	if err := os.Rename(tmp, s.path(w.ID)); err != nil {
		return fmt.Errorf("commit world %s: %w", w.ID, err)
	}
	return nil
}

// LoadWorld reads a world document. Unknown ids yield (nil, nil).
func (s *FileStore) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read world %s: %w", id, err)
	}
	var w core.World
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode world %s: %w", id, err)
	}
	return &w, nil
}

// DeleteWorld removes a world document and reports whether it existed.
func (s *FileStore) DeleteWorld(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete world %s: %w", id, err)
	}
	return true, nil
}

// ListWorlds loads every *.yaml document under the root. Unreadable
// documents are skipped rather than failing the whole listing.
func (s *FileStore) ListWorlds(ctx context.Context) ([]core.WorldInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list store root: %w", err)
	}
	var out []core.WorldInfo
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		id := strings.TrimSuffix(name, ".yaml")
		w, err := s.LoadWorld(ctx, id)
		if err != nil || w == nil {
			continue
		}
		out = append(out, w.Info())
	}
	return out, nil
}

// SaveAgent loads the world document, upserts the agent, and writes the
// document back.
func (s *FileStore) SaveAgent(ctx context.Context, worldID string, a *core.Agent) error {
	w, err := s.LoadWorld(ctx, worldID)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("save agent: world %s not found", worldID)
	}
	if w.Agents == nil {
		w.Agents = map[string]*core.Agent{}
	}
	w.Agents[a.ID] = a.Clone()
	return s.SaveWorld(ctx, w)
}

// LoadAllAgents returns every agent in the world document.
func (s *FileStore) LoadAllAgents(ctx context.Context, worldID string) ([]*core.Agent, error) {
	w, err := s.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}
	return w.AgentList(), nil
}

// DeleteAgent removes one agent from the world document and reports whether
// it existed.
func (s *FileStore) DeleteAgent(ctx context.Context, worldID, id string) (bool, error) {
	w, err := s.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return false, err
	}
	if _, ok := w.Agents[id]; !ok {
		return false, nil
	}
	delete(w.Agents, id)
	return true, s.SaveWorld(ctx, w)
}

// Close implements core.Store; the file store holds no open handles.
func (s *FileStore) Close() error { return nil }
