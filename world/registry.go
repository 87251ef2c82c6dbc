package world

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"agentworld/agent"
	"agentworld/bus"
	"agentworld/core"
	"agentworld/internal/util"
	"agentworld/logging"
	"agentworld/storage"
)

// Options configures a Registry.
type Options struct {
	// Store persists worlds and agents. Defaults to an in-memory store.
	Store core.Store
	// NewBus builds the event bus a new or loaded world owns. A capacity
	// of zero or less uses the bus default.
	NewBus func(historyCapacity int) core.EventBus
	// Logger receives registry logs.
	Logger logging.Logger
}

// WorldParams is the input for creating a world.
type WorldParams struct {
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description,omitempty" yaml:"description,omitempty"`
	MaxTurns        int    `json:"maxTurns,omitempty" yaml:"maxTurns,omitempty"`
	MainAgent       string `json:"mainAgent,omitempty" yaml:"mainAgent,omitempty"`
	HistoryCapacity int    `json:"historyCapacity,omitempty" yaml:"historyCapacity,omitempty"`
}

// Registry owns the live World objects of one process. Every world carries
// its own event bus, so agents and observers of one world are structurally
// unable to see another world's traffic. The registry wires new and loaded
// worlds to the agent runtime and keeps the store in step with mutations.
//
// Lookups signal absence with nil or false returns; errors are reserved for
// invalid input, storage failures, and message sends without a valid target.
type Registry struct {
	store   core.Store
	newBus  func(historyCapacity int) core.EventBus
	runtime *agent.Runtime
	logger  logging.Logger

	mu     sync.Mutex
	worlds map[string]*core.World
}

// NewRegistry creates a Registry that binds agents through runtime.
func NewRegistry(runtime *agent.Runtime, optFns ...func(o *Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.NewBus == nil {
		opts.NewBus = func(historyCapacity int) core.EventBus {
			return bus.New(func(o *bus.Options) { o.HistoryCapacity = historyCapacity })
		}
	}
	return &Registry{
		store:   opts.Store,
		newBus:  opts.NewBus,
		runtime: runtime,
		logger:  logging.OrNop(opts.Logger),
		worlds:  map[string]*core.World{},
	}
}

// Runtime returns the agent runtime the registry binds agents through.
func (r *Registry) Runtime() *agent.Runtime { return r.runtime }

// CreateWorld builds an empty world with a fresh bus, persists it, announces
// it on its own bus, and returns the new world id.
func (r *Registry) CreateWorld(ctx context.Context, p WorldParams) (string, error) {
	if strings.TrimSpace(p.Name) == "" {
		return "", fmt.Errorf("create world: name is required")
	}
	w := core.NewWorld(core.NewID(), p.Name)
	w.Description = p.Description
	w.MaxTurns = p.MaxTurns
	w.MainAgent = p.MainAgent
	w.AttachBus(r.newBus(p.HistoryCapacity))

	r.mu.Lock()
	r.worlds[w.ID] = w
	r.mu.Unlock()

	if err := r.store.SaveWorld(ctx, w); err != nil {
		r.mu.Lock()
		delete(r.worlds, w.ID)
		r.mu.Unlock()
		return "", fmt.Errorf("persist world %s: %w", w.ID, err)
	}

	r.emitWorld(w, core.WorldActionCreated, "")
	r.logger.Info("world.created", "world_id", w.ID, "name", w.Name)
	return w.ID, nil
}

// LoadWorld returns the live world, reconstructing it from the store on
// first access: world snapshot, then the authoritative per-agent records,
// then a fresh bus and one runtime binding per active agent. Loading an
// already-live world returns the same object and binds nothing again.
// Unknown ids yield (nil, nil).
func (r *Registry) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.worlds[id]; ok {
		return w, nil
	}

	w, err := r.store.LoadWorld(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, nil
	}
	agents, err := r.store.LoadAllAgents(ctx, id)
	if err != nil {
		return nil, err
	}
	w.ReplaceAgents(agents)

	w.AttachBus(r.newBus(0))
	if err := r.runtime.Attach(w); err != nil {
		return nil, err
	}
	r.worlds[id] = w
	r.logger.Info("world.loaded", "world_id", id, "agents", len(agents))
	return w, nil
}

// SaveWorld snapshots a live world to the store. False means the world is
// not loaded and there was nothing to save.
func (r *Registry) SaveWorld(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	w, ok := r.worlds[id]
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, r.store.SaveWorld(ctx, w)
}

// DeleteWorld removes the world from the store and the registry, cancels
// its in-flight agent turns, and closes its bus, which tears down every
// subscription on it. False when the world was nowhere to be found.
func (r *Registry) DeleteWorld(ctx context.Context, id string) (bool, error) {
	stored, err := r.store.DeleteWorld(ctx, id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	w, live := r.worlds[id]
	delete(r.worlds, id)
	r.mu.Unlock()

	if live {
		r.runtime.Detach(id)
		r.emitWorld(w, core.WorldActionDeleted, "")
		if b := w.Bus(); b != nil {
			b.Close()
		}
	}
	if !stored && !live {
		return false, nil
	}
	r.logger.Info("world.deleted", "world_id", id)
	return true, nil
}

// GetWorldInfo returns the listing view of a world, nil when unknown. Live
// worlds report live state; unloaded ones come from the store.
func (r *Registry) GetWorldInfo(ctx context.Context, id string) (*core.WorldInfo, error) {
	r.mu.Lock()
	w, ok := r.worlds[id]
	r.mu.Unlock()
	if ok {
		info := w.Info()
		return &info, nil
	}
	stored, err := r.store.LoadWorld(ctx, id)
	if err != nil || stored == nil {
		return nil, err
	}
	info := stored.Info()
	return &info, nil
}

// ListWorlds merges stored worlds with live ones, live state winning, sorted
// by name.
func (r *Registry) ListWorlds(ctx context.Context) ([]core.WorldInfo, error) {
	infos, err := r.store.ListWorlds(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]core.WorldInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}
	r.mu.Lock()
	for id, w := range r.worlds {
		byID[id] = w.Info()
	}
	r.mu.Unlock()

	out := make([]core.WorldInfo, 0, len(byID))
	for _, info := range byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateAgent validates the params, derives the agent id from its name,
// stores the record, subscribes the agent to the world's message topic and
// announces it. An unknown world yields (nil, nil).
func (r *Registry) CreateAgent(ctx context.Context, worldID string, p core.AgentParams) (*core.Agent, error) {
	id := util.Slugify(p.Name)
	switch {
	case id == "":
		return nil, fmt.Errorf("create agent: name is required")
	case p.Provider == "":
		return nil, fmt.Errorf("create agent: provider is required")
	case p.Model == "":
		return nil, fmt.Errorf("create agent: model is required")
	}

	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}

	a := &core.Agent{
		ID:           id,
		Name:         p.Name,
		Type:         p.Type,
		Status:       core.AgentActive,
		Provider:     p.Provider,
		Model:        p.Model,
		SystemPrompt: p.SystemPrompt,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
		AutoReply:    p.AutoReply,
		CreatedAt:    time.Now(),
	}
	if err := w.AddAgent(a); err != nil {
		return nil, fmt.Errorf("agent %q: %w", p.Name, err)
	}
	if err := r.store.SaveAgent(ctx, worldID, a); err != nil {
		w.RemoveAgent(a.ID)
		return nil, fmt.Errorf("persist agent %s: %w", a.ID, err)
	}
	if err := r.runtime.Bind(w, a.ID); err != nil {
		return nil, err
	}

	r.emitWorld(w, core.WorldActionAgentAdded, a.ID)
	r.logger.Info("agent.created", "world_id", worldID, "agent_id", a.ID, "provider", p.Provider)
	created, _ := w.Agent(a.ID)
	return created, nil
}

// GetAgent returns a detached copy of the agent, nil when the world or the
// agent is unknown.
func (r *Registry) GetAgent(ctx context.Context, worldID, agentID string) (*core.Agent, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}
	a, ok := w.Agent(agentID)
	if !ok {
		return nil, nil
	}
	return a, nil
}

// GetAgents returns detached copies of the world's agents sorted by name,
// nil when the world is unknown.
func (r *Registry) GetAgents(ctx context.Context, worldID string) ([]*core.Agent, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}
	agents := w.AgentList()
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// UpdateAgent merges a partial patch into the agent, refreshes LastActive,
// persists and announces the change. The agent id never changes. An agent
// patched back to active is rebound to the message topic; deactivation
// leaves the binding in place, the handler goes quiet on its own. Unknown
// world or agent yields (nil, nil).
func (r *Registry) UpdateAgent(ctx context.Context, worldID, agentID string, patch core.AgentPatch) (*core.Agent, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}
	prev, ok := w.Agent(agentID)
	if !ok {
		return nil, nil
	}

	w.UpdateAgent(agentID, func(a *core.Agent) { patch.Apply(a) })
	updated, _ := w.Agent(agentID)

	if prev.Status != core.AgentActive && updated.Status == core.AgentActive {
		if err := r.runtime.Bind(w, agentID); err != nil {
			return nil, err
		}
	}
	if err := r.store.SaveAgent(ctx, worldID, updated); err != nil {
		// Keep the live record in step with the store.
		w.UpdateAgent(agentID, func(a *core.Agent) { *a = *prev.Clone() })
		return nil, fmt.Errorf("persist agent %s: %w", agentID, err)
	}

	r.emitWorld(w, core.WorldActionAgentUpdated, agentID)
	return updated, nil
}

// RemoveAgent unsubscribes the agent before anything else, then removes it
// from the world and the store. False when the world or agent is unknown.
func (r *Registry) RemoveAgent(ctx context.Context, worldID, agentID string) (bool, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return false, err
	}
	if _, ok := w.Agent(agentID); !ok {
		return false, nil
	}

	r.runtime.Unbind(worldID, agentID)
	w.RemoveAgent(agentID)
	if _, err := r.store.DeleteAgent(ctx, worldID, agentID); err != nil {
		return true, err
	}

	r.emitWorld(w, core.WorldActionAgentRemoved, agentID)
	r.logger.Info("agent.removed", "world_id", worldID, "agent_id", agentID)
	return true, nil
}

// CreateChat opens an empty named chat, reporting whether it was new. Chats
// also come into being implicitly when a message names them.
func (r *Registry) CreateChat(ctx context.Context, worldID, chatID string) (bool, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return false, err
	}
	return w.EnsureChat(chatID), nil
}

// GetChat returns the chat's listing view, nil when the world or chat is
// unknown.
func (r *Registry) GetChat(ctx context.Context, worldID, chatID string) (*core.ChatInfo, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}
	for _, info := range w.ChatInfos() {
		if info.ID == chatID {
			return &info, nil
		}
	}
	return nil, nil
}

// ListChats returns the world's chats sorted by id, nil when the world is
// unknown.
func (r *Registry) ListChats(ctx context.Context, worldID string) ([]core.ChatInfo, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return nil, err
	}
	return w.ChatInfos(), nil
}

// DeleteChat drops a chat with its messages and cancels any in-flight agent
// turn scoped to it. False when the world or chat is unknown.
func (r *Registry) DeleteChat(ctx context.Context, worldID, chatID string) (bool, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil || w == nil {
		return false, err
	}
	if !w.RemoveChat(chatID) {
		return false, nil
	}
	r.runtime.StopChat(worldID, chatID)
	return true, nil
}

// BroadcastMessage appends a message to the chat and publishes it to every
// subscriber of the world's message topic. An empty chatID means the default
// chat.
func (r *Registry) BroadcastMessage(ctx context.Context, worldID, content, sender, chatID string) (core.Message, error) {
	w, err := r.resolve(ctx, worldID)
	if err != nil {
		return core.Message{}, err
	}
	return r.deliver(ctx, w, chatID, core.NewMessage(sender, content))
}

// SendMessage is a broadcast addressed to one agent: the target is resolved
// by id, name or name slug and stamped as the message recipient, so only it
// responds while the rest of the world still observes the message. A missing
// target fails with ErrAgentNotFound.
func (r *Registry) SendMessage(ctx context.Context, worldID, target, content, sender, chatID string) (core.Message, error) {
	w, err := r.resolve(ctx, worldID)
	if err != nil {
		return core.Message{}, err
	}
	a := findAgent(w, target)
	if a == nil {
		return core.Message{}, fmt.Errorf("send to agent %q: %w", target, core.ErrAgentNotFound)
	}
	msg := core.NewMessage(sender, content)
	msg.Recipient = a.ID
	return r.deliver(ctx, w, chatID, msg)
}

// StopChat cancels any in-flight agent turn scoped to the chat, reporting
// whether there was one.
func (r *Registry) StopChat(worldID, chatID string) bool {
	return r.runtime.StopChat(worldID, chatID)
}

// resolve is LoadWorld for operations that cannot proceed without the world.
func (r *Registry) resolve(ctx context.Context, worldID string) (*core.World, error) {
	w, err := r.LoadWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("world %s: %w", worldID, core.ErrWorldNotFound)
	}
	return w, nil
}

// deliver stores the message in its chat and publishes it. Human messages
// are held back while the chat has an approval decision outstanding.
func (r *Registry) deliver(ctx context.Context, w *core.World, chatID string, msg core.Message) (core.Message, error) {
	msg.ChatID = chatID
	if msg.ChatID == "" {
		msg.ChatID = core.DefaultChatID
	}

	if gate := r.runtime.Gate(); gate != nil && msg.FromHuman() {
		pending, err := gate.HasPendingForChat(ctx, w.ID, msg.ChatID)
		if err != nil {
			return core.Message{}, err
		}
		if pending {
			return core.Message{}, fmt.Errorf("chat %s is awaiting an approval decision", msg.ChatID)
		}
	}

	b := w.Bus()
	if b == nil {
		return core.Message{}, fmt.Errorf("world %s has no event bus", w.ID)
	}
	stored := w.AppendMessage(msg)
	if _, err := b.Publish(core.TopicMessages, core.NewMessageEvent(stored)); err != nil {
		return stored, err
	}
	return stored, nil
}

// findAgent resolves a target by agent id, display name or name slug.
func findAgent(w *core.World, target string) *core.Agent {
	if a, ok := w.Agent(target); ok {
		return a
	}
	for _, a := range w.AgentList() {
		if strings.EqualFold(a.Name, target) || strings.EqualFold(util.Slugify(a.Name), target) {
			return a
		}
	}
	return nil
}

// emitWorld publishes a lifecycle notification on the world's own bus.
func (r *Registry) emitWorld(w *core.World, action, agentID string) {
	b := w.Bus()
	if b == nil {
		return
	}
	e := core.Event{Type: core.EventWorld, Payload: core.WorldPayload{Action: action, WorldID: w.ID, AgentID: agentID}}
	if _, err := b.Publish(core.TopicWorld, e); err != nil {
		r.logger.Warn("world event rejected", "world_id", w.ID, "action", action, "error", err.Error())
	}
}
