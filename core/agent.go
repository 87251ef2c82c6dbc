package core

import "time"

// AgentStatus tracks an agent's standing in its world. Active agents
// receive and may respond to messages; inactive ones stay subscribed but
// never respond; error marks the last run as failed until the next
// successful one.
type AgentStatus string

const (
	AgentActive   AgentStatus = "active"
	AgentInactive AgentStatus = "inactive"
	AgentError    AgentStatus = "error"
)

// Agent is the persistent record of one world participant. ID is derived
// from Name once at creation and never changes; Name may be edited later.
//
// Memory is the agent's working context: the recent messages its prompts
// are built from, appended to by the runtime after each exchange. The
// behavioral side (deciding whether to respond, calling the model,
// streaming output) lives in the agent package; this record is what the
// registry stores, lists and persists.
type Agent struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Type         string      `json:"type,omitempty" yaml:"type,omitempty"`
	Status       AgentStatus `json:"status" yaml:"status"`
	Provider     string      `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model        string      `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt string      `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Temperature  float64     `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int         `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	// AutoReply lets the agent answer peer agents without a mention.
	AutoReply    bool        `json:"autoReply" yaml:"autoReply"`
	Memory       []Message   `json:"memory,omitempty" yaml:"memory,omitempty"`
	LLMCallCount int         `json:"llmCallCount" yaml:"llmCallCount"`
	LastActive   time.Time   `json:"lastActive,omitempty" yaml:"lastActive,omitempty"`
	CreatedAt    time.Time   `json:"createdAt" yaml:"createdAt"`
}

// AgentParams is the input for creating an agent. Name, Provider and Model
// are required; the agent id is derived from Name once at creation.
type AgentParams struct {
	Name         string  `json:"name" yaml:"name"`
	Type         string  `json:"type,omitempty" yaml:"type,omitempty"`
	Provider     string  `json:"provider" yaml:"provider"`
	Model        string  `json:"model" yaml:"model"`
	SystemPrompt string  `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	AutoReply    bool    `json:"autoReply" yaml:"autoReply"`
}

// AgentPatch is a partial agent update. Nil fields keep the current value;
// the agent id is not patchable.
type AgentPatch struct {
	Name         *string      `json:"name,omitempty"`
	Type         *string      `json:"type,omitempty"`
	Status       *AgentStatus `json:"status,omitempty"`
	Provider     *string      `json:"provider,omitempty"`
	Model        *string      `json:"model,omitempty"`
	SystemPrompt *string      `json:"systemPrompt,omitempty"`
	Temperature  *float64     `json:"temperature,omitempty"`
	MaxTokens    *int         `json:"maxTokens,omitempty"`
	AutoReply    *bool        `json:"autoReply,omitempty"`
}

// Apply merges the patch into the agent in place.
func (p AgentPatch) Apply(a *Agent) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Provider != nil {
		a.Provider = *p.Provider
	}
	if p.Model != nil {
		a.Model = *p.Model
	}
	if p.SystemPrompt != nil {
		a.SystemPrompt = *p.SystemPrompt
	}
	if p.Temperature != nil {
		a.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		a.MaxTokens = *p.MaxTokens
	}
	if p.AutoReply != nil {
		a.AutoReply = *p.AutoReply
	}
}

// AgentInfo is the read-only listing view of an agent, detached from the
// live record.
type AgentInfo struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Status       AgentStatus `json:"status"`
	Provider     string      `json:"provider,omitempty"`
	Model        string      `json:"model,omitempty"`
	LLMCallCount int         `json:"llmCallCount"`
	MemorySize   int         `json:"memorySize"`
	LastActive   time.Time   `json:"lastActive,omitempty"`
}

// Info converts the record to its listing view.
func (a *Agent) Info() AgentInfo {
	return AgentInfo{
		ID:           a.ID,
		Name:         a.Name,
		Status:       a.Status,
		Provider:     a.Provider,
		Model:        a.Model,
		LLMCallCount: a.LLMCallCount,
		MemorySize:   len(a.Memory),
		LastActive:   a.LastActive,
	}
}

// Clone returns a detached copy safe to hand across goroutine boundaries.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Memory = append([]Message(nil), a.Memory...)
	return &cp
}

// Remember appends msg to memory, keeping at most window entries (the most
// recent ones). A window of zero or less keeps everything. Messages whose
// id is already remembered are dropped.
func (a *Agent) Remember(msg Message, window int) {
	if msg.MessageID != "" {
		for _, existing := range a.Memory {
			if existing.MessageID == msg.MessageID {
				return
			}
		}
	}
	a.Memory = append(a.Memory, msg)
	if window > 0 && len(a.Memory) > window {
		a.Memory = a.Memory[len(a.Memory)-window:]
	}
}

// Recent returns the most recent n memory entries in order. A non-positive
// n returns everything.
func (a *Agent) Recent(n int) []Message {
	if n <= 0 || len(a.Memory) <= n {
		return append([]Message(nil), a.Memory...)
	}
	return append([]Message(nil), a.Memory[len(a.Memory)-n:]...)
}
