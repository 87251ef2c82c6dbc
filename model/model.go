package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentworld/core"
)

// Request captures the normalized model input produced by the agent
// pipeline. Messages is the working memory window, oldest first; the last
// entry is the message being responded to.
type Request struct {
	Model         string         `json:"model,omitempty"`
	System        string         `json:"system,omitempty"`
	Messages      []core.Message `json:"messages"`
	CorrelationID string         `json:"correlationId,omitempty"` // ties chunks to the response message id
	Temperature   float64        `json:"temperature,omitempty"`
	MaxTokens     int            `json:"maxTokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is a partial or final piece of a streaming completion. Partial
// chunks carry Delta; the final chunk has Final set, the accumulated Text,
// and usage when the provider reports it.
type Chunk struct {
	CorrelationID string      `json:"correlationId,omitempty"`
	Delta         string      `json:"delta,omitempty"`
	Text          string      `json:"text,omitempty"`
	Final         bool        `json:"final"`
	FinishReason  string      `json:"finish_reason,omitempty"`
	Usage         *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface the agent runtime needs to drive
// generation. Stream returns a chunk channel and an error channel (buffered
// size 1); both are closed when the call finishes, fails or is cancelled.
type Model interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info       Info
	mu         sync.Mutex
	responses  map[string]string
	failWith   error
	chunkDelay time.Duration
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent Stream call emit err instead of chunks.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetChunkDelay inserts a pause before each chunk, useful for exercising
// cancellation mid-stream.
func (m *MockModel) SetChunkDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkDelay = d
}

// Stream implements Model; emits per-rune delta chunks then a final chunk.
func (m *MockModel) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	chunkCh := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	failWith := m.failWith
	delay := m.chunkDelay
	var input string
	if len(req.Messages) > 0 {
		input = req.Messages[len(req.Messages)-1].Content
	}
	full, ok := m.responses[input]
	m.mu.Unlock()

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		if failWith != nil {
			errCh <- failWith
			return
		}
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", input)
		}

		var text string
		for _, r := range full {
			if delay > 0 {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case <-time.After(delay):
				}
			}
			text += string(r)
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case chunkCh <- Chunk{CorrelationID: req.CorrelationID, Delta: string(r)}:
			}
		}
		chunkCh <- Chunk{
			CorrelationID: req.CorrelationID,
			Text:          text,
			Final:         true,
			FinishReason:  "stop",
		}
	}()
	return chunkCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
