package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"agentworld/approval"
	"agentworld/core"
	"agentworld/internal/util"
	"agentworld/logging"
	"agentworld/model"
)

// DefaultMemoryWindow bounds how many remembered messages feed a prompt.
const DefaultMemoryWindow = 10

// Options configures a Runtime.
type Options struct {
	// MemoryWindow is how many recent memory entries go into each prompt.
	// Values below 1 fall back to DefaultMemoryWindow.
	MemoryWindow int
	// Retention caps agent memory length; zero keeps everything.
	Retention int
	// Gate, when set, lets callers suspend turns on human approval. The
	// runtime exposes it through Gate; it never blocks responses itself.
	Gate *approval.Gate
	// Logger receives runtime logs.
	Logger logging.Logger
}

// Runtime subscribes agents to their world's message topic and drives the
// response pipeline: eligibility, turn limiting, prompt assembly, streaming,
// memory updates and response publishing. One Runtime serves any number of
// worlds.
type Runtime struct {
	resolver  *model.Resolver
	gate      *approval.Gate
	logger    logging.Logger
	window    int
	retention int

	mu    sync.Mutex
	subs  map[string]map[string]func() // world id -> agent id -> bus unsubscribe
	chats map[string]*chatRun          // world id + "/" + chat id
}

// chatRun is the cancellation scope shared by every in-flight streaming call
// of one chat.
type chatRun struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime creates a Runtime that resolves models through resolver.
func NewRuntime(resolver *model.Resolver, optFns ...func(o *Options)) *Runtime {
	opts := Options{MemoryWindow: DefaultMemoryWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MemoryWindow < 1 {
		opts.MemoryWindow = DefaultMemoryWindow
	}
	return &Runtime{
		resolver:  resolver,
		gate:      opts.Gate,
		logger:    logging.OrNop(opts.Logger),
		window:    opts.MemoryWindow,
		retention: opts.Retention,
		subs:      map[string]map[string]func(){},
		chats:     map[string]*chatRun{},
	}
}

// Gate returns the approval gate the runtime was built with, or nil.
func (r *Runtime) Gate() *approval.Gate { return r.gate }

// Attach subscribes every active agent of the world to its message topic.
// Agents already subscribed are left alone, so attaching after a world load
// never produces duplicate deliveries.
func (r *Runtime) Attach(w *core.World) error {
	for _, a := range w.AgentList() {
		if a.Status != core.AgentActive {
			continue
		}
		if err := r.Bind(w, a.ID); err != nil {
			return err
		}
	}
	return nil
}

// Bind subscribes one agent to the world's message topic. Binding an agent
// that is already bound is a no-op; the world object gets at most one live
// subscription per agent.
func (r *Runtime) Bind(w *core.World, agentID string) error {
	b := w.Bus()
	if b == nil {
		return fmt.Errorf("world %s has no event bus", w.ID)
	}

	r.mu.Lock()
	if r.subs[w.ID] == nil {
		r.subs[w.ID] = map[string]func(){}
	}
	if _, ok := r.subs[w.ID][agentID]; ok {
		r.mu.Unlock()
		return nil
	}
	// Reserve the slot so a concurrent Bind for the same agent backs off.
	r.subs[w.ID][agentID] = func() {}
	r.mu.Unlock()

	unsub, err := b.Subscribe(core.TopicMessages, func(e core.Event) { r.handle(w, agentID, e) }, nil)
	if err != nil {
		r.mu.Lock()
		delete(r.subs[w.ID], agentID)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.subs[w.ID][agentID] = unsub
	r.mu.Unlock()

	r.logger.Debug("agent.subscribed", "world_id", w.ID, "agent_id", agentID)
	return nil
}

// Unbind removes the agent's message subscription. Unbinding an agent that
// was never bound is a no-op.
func (r *Runtime) Unbind(worldID, agentID string) {
	r.mu.Lock()
	unsub := r.subs[worldID][agentID]
	delete(r.subs[worldID], agentID)
	r.mu.Unlock()

	if unsub != nil {
		unsub()
		r.logger.Debug("agent.unsubscribed", "world_id", worldID, "agent_id", agentID)
	}
}

// Detach removes every agent subscription of the world and cancels its
// in-flight streaming calls. Used when a world is deleted.
func (r *Runtime) Detach(worldID string) {
	prefix := worldID + "/"

	r.mu.Lock()
	agents := r.subs[worldID]
	delete(r.subs, worldID)
	var cancels []context.CancelFunc
	for key, run := range r.chats {
		if strings.HasPrefix(key, prefix) {
			cancels = append(cancels, run.cancel)
			delete(r.chats, key)
		}
	}
	r.mu.Unlock()

	for _, unsub := range agents {
		if unsub != nil {
			unsub()
		}
	}
	for _, cancel := range cancels {
		cancel()
	}
}

// StopChat cancels any in-flight streaming call scoped to the chat and
// reports whether there was one. Stopping an idle chat is a no-op.
func (r *Runtime) StopChat(worldID, chatID string) bool {
	if chatID == "" {
		chatID = core.DefaultChatID
	}
	key := worldID + "/" + chatID

	r.mu.Lock()
	run, ok := r.chats[key]
	delete(r.chats, key)
	r.mu.Unlock()

	if !ok {
		return false
	}
	run.cancel()
	r.logger.Info("chat stopped", "world_id", worldID, "chat_id", chatID)
	return true
}

// chatContext returns the shared cancellation scope for a chat, creating it
// on first use. StopChat retires the scope; the next call starts a fresh one.
func (r *Runtime) chatContext(worldID, chatID string) context.Context {
	key := worldID + "/" + chatID

	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.chats[key]; ok {
		return run.ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.chats[key] = &chatRun{ctx: ctx, cancel: cancel}
	return ctx
}

// handle is the per-agent message subscriber. It records the message in the
// agent's memory, applies the eligibility filter and the chat's turn limit,
// and runs the response pipeline asynchronously.
func (r *Runtime) handle(w *core.World, agentID string, e core.Event) {
	msg, ok := e.MessageOf()
	if !ok {
		return
	}
	a, ok := w.Agent(agentID)
	if !ok || a.Status != core.AgentActive {
		return
	}
	if isSelf(a, msg) {
		return
	}

	// Observed messages land in memory whether or not the agent answers,
	// so later prompts carry the whole conversation.
	w.UpdateAgent(agentID, func(a *core.Agent) { a.Remember(msg, r.retention) })

	if !ShouldRespond(a, msg) {
		return
	}

	chatID := msg.ChatID
	if chatID == "" {
		chatID = core.DefaultChatID
	}
	// The limiter resets when a human or system message lands in the chat,
	// so only consecutive agent turns count against it.
	if !w.TurnLimiter(chatID).Allow() {
		r.logger.Info("turn limit reached", "world_id", w.ID, "chat_id", chatID, "agent_id", agentID)
		if b := w.Bus(); b != nil {
			if _, err := b.Publish(core.TopicWorld, core.NewWorldEvent(w.ID, core.WorldActionTurnLimit)); err != nil {
				r.logger.Warn("turn limit event rejected", "world_id", w.ID, "error", err.Error())
			}
		}
		return
	}

	ctx := r.chatContext(w.ID, chatID)
	go func() {
		if _, err := r.Respond(ctx, w, agentID, msg); err != nil {
			// Failures were already surfaced by the pipeline; cancelled
			// turns are routine.
			r.logger.Debug("agent.respond.aborted", "agent_id", agentID, "error", err.Error())
		}
	}()
}

// Respond runs the response pipeline for one agent and one triggering
// message: prompt from system prompt plus recent memory, streaming
// completion with SSE chunk events, then memory update and response
// publishing. On failure it publishes an SSE error event, marks the agent
// errored, and returns the error.
func (r *Runtime) Respond(ctx context.Context, w *core.World, agentID string, msg core.Message) (core.Message, error) {
	a, ok := w.Agent(agentID)
	if !ok {
		return core.Message{}, fmt.Errorf("agent %s not found in world %s", agentID, w.ID)
	}
	b := w.Bus()
	if b == nil {
		return core.Message{}, fmt.Errorf("world %s has no event bus", w.ID)
	}

	chatID := msg.ChatID
	if chatID == "" {
		chatID = core.DefaultChatID
	}

	// The response message id doubles as the correlation id of its chunks.
	responseID := core.NewID()
	start := time.Now()
	r.logger.Debug("agent.respond.start", "world_id", w.ID, "agent_id", a.ID, "message_id", responseID, "reply_to", msg.MessageID)

	mdl, err := r.resolver.Resolve(a.Provider)
	if err != nil {
		r.fail(w, a.ID, responseID, err)
		return core.Message{}, err
	}

	system, err := util.RenderTemplate(a.SystemPrompt, map[string]any{
		"name":  a.Name,
		"world": w.Name,
	})
	if err != nil {
		r.fail(w, a.ID, responseID, err)
		return core.Message{}, fmt.Errorf("render system prompt: %w", err)
	}

	req := model.Request{
		Model:         a.Model,
		System:        system,
		Messages:      a.Recent(r.window),
		CorrelationID: responseID,
		Temperature:   a.Temperature,
		MaxTokens:     a.MaxTokens,
	}

	chunks, errs := mdl.Stream(ctx, req)

	var final model.Chunk
	sawFinal := false
	for chunk := range chunks {
		select {
		case <-ctx.Done():
			// Stopped mid-stream: no further chunk events, no response.
			return core.Message{}, ctx.Err()
		default:
		}
		if chunk.Final {
			final = chunk
			sawFinal = true
		}
		if _, perr := b.Publish(core.TopicSSE, core.NewSSEEvent(a.ID, responseID, chunk.Delta, chunk.Final)); perr != nil {
			r.logger.Warn("sse chunk rejected", "agent_id", a.ID, "error", perr.Error())
		}
	}
	if err := <-errs; err != nil {
		if errors.Is(err, context.Canceled) {
			return core.Message{}, err
		}
		r.fail(w, a.ID, responseID, err)
		return core.Message{}, err
	}
	if !sawFinal {
		err := fmt.Errorf("provider %s returned no completion", a.Provider)
		r.fail(w, a.ID, responseID, err)
		return core.Message{}, err
	}

	response := core.NewAgentMessage(a.ID, a.Name, final.Text)
	response.MessageID = responseID
	response.ChatID = chatID
	response.ReplyToMessageID = msg.MessageID

	stored := w.AppendMessage(response)
	w.UpdateAgent(a.ID, func(ag *core.Agent) {
		ag.Remember(stored, r.retention)
		ag.LLMCallCount++
		ag.Status = core.AgentActive
	})

	if _, err := b.Publish(core.TopicMessages, core.NewMessageEvent(stored)); err != nil {
		return stored, fmt.Errorf("publish response: %w", err)
	}

	if wl, ok := r.logger.(interface {
		LogAgentRun(string, int, time.Duration, bool, error)
	}); ok {
		wl.LogAgentRun(a.ID, 1, time.Since(start), true, nil)
	} else {
		r.logger.Info("agent.respond.complete", "world_id", w.ID, "agent_id", a.ID, "message_id", responseID, "duration_ms", time.Since(start).Milliseconds())
	}
	return stored, nil
}

// fail surfaces a pipeline failure both ways: as an SSE error event for
// observers and as an error status on the agent. The caller still gets the
// original error.
func (r *Runtime) fail(w *core.World, agentID, messageID string, err error) {
	if b := w.Bus(); b != nil {
		if _, perr := b.Publish(core.TopicSSE, core.NewSSEErrorEvent(agentID, messageID, err.Error())); perr != nil {
			r.logger.Warn("sse error event rejected", "agent_id", agentID, "error", perr.Error())
		}
	}
	w.UpdateAgent(agentID, func(a *core.Agent) { a.Status = core.AgentError })
	r.logger.Error("agent.respond.failed", "world_id", w.ID, "agent_id", agentID, "message_id", messageID, "error", err.Error())
}
