package core

import (
	"sort"
	"sync"
	"time"
)

// DefaultChatID is the chat messages land in when no chat is named.
const DefaultChatID = "main"

// World is a self-contained simulation context: its agents, its chats, and
// its event bus. It is safe for concurrent access.
//
// Contract:
//   - Mutations update the Updated timestamp
//   - Agents and Messages return defensive copies to avoid external mutation
//   - Clone performs deep copies of maps/slices for safe divergence; the bus
//     reference is shared, not copied.
type World struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	MaxTurns    int                  `json:"maxTurns" yaml:"maxTurns"`
	MainAgent   string               `json:"mainAgent,omitempty" yaml:"mainAgent,omitempty"`
	Agents      map[string]*Agent    `json:"agents" yaml:"agents"`
	Chats       map[string][]Message `json:"chats" yaml:"chats"`
	Created     time.Time            `json:"created" yaml:"created"`
	Updated     time.Time            `json:"updated" yaml:"updated"`

	bus      EventBus
	limiters map[string]*CallLimiter
	mu       sync.RWMutex
}

// NewWorld creates an empty world with the given id and name.
func NewWorld(id, name string) *World {
	now := time.Now()
	return &World{
		ID:       id,
		Name:     name,
		Agents:   map[string]*Agent{},
		Chats:    map[string][]Message{},
		Created:  now,
		Updated:  now,
		limiters: map[string]*CallLimiter{},
	}
}

// initLocked allocates the maps a decoded snapshot leaves nil. Caller must
// hold the write lock.
func (w *World) initLocked() {
	if w.Agents == nil {
		w.Agents = map[string]*Agent{}
	}
	if w.Chats == nil {
		w.Chats = map[string][]Message{}
	}
	if w.limiters == nil {
		w.limiters = map[string]*CallLimiter{}
	}
}

// AttachBus wires the world to its event bus. The registry calls this once
// at create/load time before any publisher can see the world.
func (w *World) AttachBus(bus EventBus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bus = bus
}

// Bus returns the world's event bus, or nil before AttachBus.
func (w *World) Bus() EventBus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bus
}

// Describe updates name and description. Empty arguments leave the current
// value in place.
func (w *World) Describe(name, description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if name != "" {
		w.Name = name
	}
	if description != "" {
		w.Description = description
	}
	w.Updated = time.Now()
}

// AddAgent inserts a new agent record. It returns ErrAgentExists when the
// id is already taken.
func (w *World) AddAgent(a *Agent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initLocked()
	if _, ok := w.Agents[a.ID]; ok {
		return ErrAgentExists
	}
	w.Agents[a.ID] = a.Clone()
	w.Updated = time.Now()
	return nil
}

// Agent returns a detached copy of the agent, or (nil, false) when absent.
func (w *World) Agent(id string) (*Agent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.Agents[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// UpdateAgent applies fn to the live record under the write lock and
// reports whether the agent existed. ID changes inside fn are discarded,
// and LastActive is refreshed.
func (w *World) UpdateAgent(id string, fn func(*Agent)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.Agents[id]
	if !ok {
		return false
	}
	fn(a)
	a.ID = id
	a.LastActive = time.Now()
	w.Updated = a.LastActive
	return true
}

// RemoveAgent deletes the agent and reports whether it existed.
func (w *World) RemoveAgent(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Agents[id]; !ok {
		return false
	}
	delete(w.Agents, id)
	w.Updated = time.Now()
	return true
}

// ReplaceAgents swaps in the given agent set wholesale without touching
// timestamps. Used when reconstructing a world from storage, where the
// per-agent records are authoritative.
func (w *World) ReplaceAgents(agents []*Agent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Agents = make(map[string]*Agent, len(agents))
	for _, a := range agents {
		w.Agents[a.ID] = a.Clone()
	}
}

// AgentList returns detached copies of all agents in unspecified order.
func (w *World) AgentList() []*Agent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Agent, 0, len(w.Agents))
	for _, a := range w.Agents {
		out = append(out, a.Clone())
	}
	return out
}

// AppendMessage stores the message in its chat, stamping id, chat id and
// timestamp when missing, and returns the stored value. A message whose id
// is already present in the chat is dropped; the stored original is
// returned instead.
func (w *World) AppendMessage(msg Message) Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initLocked()
	if msg.MessageID == "" {
		msg.MessageID = NewID()
	}
	if msg.ChatID == "" {
		msg.ChatID = DefaultChatID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	for _, existing := range w.Chats[msg.ChatID] {
		if existing.MessageID == msg.MessageID {
			return existing
		}
	}
	w.Chats[msg.ChatID] = append(w.Chats[msg.ChatID], msg)
	// A human or system message opens a fresh round of agent turns.
	if msg.FromHuman() || msg.FromSystem() {
		w.limiterLocked(msg.ChatID).Reset()
	}
	w.Updated = time.Now()
	return msg
}

// Messages returns a copy of the chat's messages in append order. An
// unknown chat yields an empty slice.
func (w *World) Messages(chatID string) []Message {
	if chatID == "" {
		chatID = DefaultChatID
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	msgs := w.Chats[chatID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// ChatIDs returns the ids of all chats in unspecified order.
func (w *World) ChatIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.Chats))
	for id := range w.Chats {
		out = append(out, id)
	}
	return out
}

// EnsureChat creates an empty chat and reports whether it was new. Chats
// also come into being implicitly when a message lands in them.
func (w *World) EnsureChat(id string) bool {
	if id == "" {
		id = DefaultChatID
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initLocked()
	if _, ok := w.Chats[id]; ok {
		return false
	}
	w.Chats[id] = []Message{}
	w.Updated = time.Now()
	return true
}

// RemoveChat deletes a chat with its messages and turn state, reporting
// whether it existed.
func (w *World) RemoveChat(id string) bool {
	if id == "" {
		id = DefaultChatID
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Chats[id]; !ok {
		return false
	}
	delete(w.Chats, id)
	delete(w.limiters, id)
	w.Updated = time.Now()
	return true
}

// ChatInfos returns listing views of every chat, sorted by id.
func (w *World) ChatInfos() []ChatInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ChatInfo, 0, len(w.Chats))
	for id, msgs := range w.Chats {
		out = append(out, ChatInfo{ID: id, MessageCount: len(msgs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TurnLimiter returns the chat's consecutive-agent-turn limiter, creating
// it on first use. With MaxTurns <= 0 the limiter never exhausts.
func (w *World) TurnLimiter(chatID string) *CallLimiter {
	if chatID == "" {
		chatID = DefaultChatID
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limiterLocked(chatID)
}

// limiterLocked is TurnLimiter under an already-held write lock.
func (w *World) limiterLocked(chatID string) *CallLimiter {
	w.initLocked()
	l, ok := w.limiters[chatID]
	if !ok {
		l = NewCallLimiter(w.MaxTurns)
		w.limiters[chatID] = l
	}
	return l
}

// Info returns the listing view of the world.
func (w *World) Info() WorldInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	total := 0
	for _, msgs := range w.Chats {
		total += len(msgs)
	}
	return WorldInfo{
		ID:           w.ID,
		Name:         w.Name,
		Description:  w.Description,
		AgentCount:   len(w.Agents),
		ChatCount:    len(w.Chats),
		MessageCount: total,
		Created:      w.Created,
		Updated:      w.Updated,
	}
}

// Clone returns a deep copy safe for persistence while the original keeps
// mutating. The bus and limiters are deliberately not carried over.
func (w *World) Clone() *World {
	w.mu.RLock()
	defer w.mu.RUnlock()
	cp := NewWorld(w.ID, w.Name)
	cp.Description = w.Description
	cp.MaxTurns = w.MaxTurns
	cp.MainAgent = w.MainAgent
	cp.Created = w.Created
	cp.Updated = w.Updated
	for id, a := range w.Agents {
		cp.Agents[id] = a.Clone()
	}
	for id, msgs := range w.Chats {
		out := make([]Message, len(msgs))
		copy(out, msgs)
		cp.Chats[id] = out
	}
	return cp
}

// ChatInfo is the read-only listing view of one chat.
type ChatInfo struct {
	ID           string `json:"id"`
	MessageCount int    `json:"messageCount"`
}

// WorldInfo is the read-only listing view of a world.
type WorldInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	AgentCount   int       `json:"agentCount"`
	ChatCount    int       `json:"chatCount"`
	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}
