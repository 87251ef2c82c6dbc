package subscription

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentworld/bus"
	"agentworld/core"
)

type stubSource struct {
	mu     sync.Mutex
	worlds map[string]*core.World
	gates  map[string]chan struct{}
	calls  chan string
}

func newStubSource() *stubSource {
	return &stubSource{
		worlds: map[string]*core.World{},
		gates:  map[string]chan struct{}{},
	}
}

func (s *stubSource) add(id string) *core.World {
	w := core.NewWorld(id, id)
	w.AttachBus(bus.New())
	s.mu.Lock()
	s.worlds[id] = w
	s.mu.Unlock()
	return w
}

func (s *stubSource) gate(id string) chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *stubSource) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	s.mu.Lock()
	gate := s.gates[id]
	w := s.worlds[id]
	s.mu.Unlock()

	if s.calls != nil {
		s.calls <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w == nil {
		return nil, nil
	}
	return w, nil
}

type sinkRecorder struct {
	mu  sync.Mutex
	got []Envelope
}

func (r *sinkRecorder) sink(env Envelope) {
	r.mu.Lock()
	r.got = append(r.got, env)
	r.mu.Unlock()
}

func (r *sinkRecorder) envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.got...)
}

func TestSubscribeForwardsScopedEvents(t *testing.T) {
	src := newStubSource()
	w := src.add("w1")
	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	res, err := m.Subscribe(context.Background(), "s1", "w1", core.DefaultChatID)
	require.NoError(t, err)
	assert.False(t, res.Stale)
	assert.Equal(t, "w1", res.WorldID)

	b := w.Bus()
	_, err = b.Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "hi", ChatID: core.DefaultChatID,
	}))
	require.NoError(t, err)

	// A message in another chat stays outside the bound scope.
	_, err = b.Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "psst", ChatID: "side",
	}))
	require.NoError(t, err)

	// World and SSE events are not chat scoped.
	_, err = b.Publish(core.TopicWorld, core.NewWorldEvent("w1", core.WorldActionUpdated))
	require.NoError(t, err)
	_, err = b.Publish(core.TopicSSE, core.NewSSEEvent("bot", "m1", "chunk", false))
	require.NoError(t, err)

	envs := rec.envelopes()
	require.Len(t, envs, 3)
	for _, env := range envs {
		assert.Equal(t, "s1", env.SubscriptionID)
		assert.Equal(t, "w1", env.WorldID)
	}
	assert.Equal(t, core.EventMessage, envs[0].Event.Type)
	assert.Equal(t, core.EventWorld, envs[1].Event.Type)
	assert.Equal(t, core.EventSSE, envs[2].Event.Type)
}

func TestSubscribeEmptyChatForwardsAllChats(t *testing.T) {
	src := newStubSource()
	w := src.add("w1")
	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	_, err := m.Subscribe(context.Background(), "s1", "w1", "")
	require.NoError(t, err)

	for _, chat := range []string{"main", "side"} {
		_, err := w.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
			Sender: "alice", Role: core.RoleUser, Content: "hi", ChatID: chat,
		}))
		require.NoError(t, err)
	}
	assert.Len(t, rec.envelopes(), 2)
}

func TestUnsubscribeRetiresID(t *testing.T) {
	src := newStubSource()
	w := src.add("w1")
	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	_, err := m.Subscribe(context.Background(), "s1", "w1", "")
	require.NoError(t, err)
	require.Len(t, m.Bindings(), 1)

	m.Unsubscribe("s1")
	m.Unsubscribe("s1")
	m.Unsubscribe("never-bound")
	assert.Empty(t, m.Bindings())

	_, err = w.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "hi", ChatID: "main",
	}))
	require.NoError(t, err)
	assert.Empty(t, rec.envelopes())

	// The id is spent for good.
	_, err = m.Subscribe(context.Background(), "s1", "w1", "")
	require.ErrorIs(t, err, ErrReused)
	assert.Empty(t, m.Bindings())
}

func TestSubscribeUnknownWorld(t *testing.T) {
	src := newStubSource()
	m := NewManager(src, nil)

	_, err := m.Subscribe(context.Background(), "s1", "ghost", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReused)

	// A failed bind does not burn the id.
	src.add("ghost")
	res, err := m.Subscribe(context.Background(), "s1", "ghost", "")
	require.NoError(t, err)
	assert.False(t, res.Stale)
}

func TestNewestSubscribeWins(t *testing.T) {
	src := newStubSource()
	wa := src.add("worldA")
	wb := src.add("worldB")
	gateA := src.gate("worldA")
	gateB := src.gate("worldB")
	src.calls = make(chan string, 2)

	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	results := make(chan Result, 2)
	errs := make(chan error, 2)

	go func() {
		res, err := m.Subscribe(context.Background(), "x", "worldA", "")
		results <- res
		errs <- err
	}()
	require.Equal(t, "worldA", <-src.calls)

	go func() {
		res, err := m.Subscribe(context.Background(), "x", "worldB", "")
		results <- res
		errs <- err
	}()
	require.Equal(t, "worldB", <-src.calls)

	// The newer call resolves first and binds.
	close(gateB)
	resB := <-results
	require.NoError(t, <-errs)
	assert.False(t, resB.Stale)
	assert.Equal(t, "worldB", resB.WorldID)

	// The older call resolves afterwards and must back out quietly.
	close(gateA)
	resA := <-results
	require.NoError(t, <-errs)
	assert.True(t, resA.Stale)

	bindings := m.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "worldB", bindings[0].WorldID)

	_, err := wa.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "into A", ChatID: "main",
	}))
	require.NoError(t, err)
	_, err = wb.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "into B", ChatID: "main",
	}))
	require.NoError(t, err)

	envs := rec.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, "x", envs[0].SubscriptionID)
	assert.Equal(t, "worldB", envs[0].WorldID)
}

func TestRebindReplacesExistingBinding(t *testing.T) {
	src := newStubSource()
	wa := src.add("worldA")
	wb := src.add("worldB")
	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	_, err := m.Subscribe(context.Background(), "x", "worldA", "")
	require.NoError(t, err)
	_, err = m.Subscribe(context.Background(), "x", "worldB", "")
	require.NoError(t, err)

	bindings := m.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "worldB", bindings[0].WorldID)

	_, err = wa.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "old scope", ChatID: "main",
	}))
	require.NoError(t, err)
	_, err = wb.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "new scope", ChatID: "main",
	}))
	require.NoError(t, err)

	envs := rec.envelopes()
	require.Len(t, envs, 1)
	assert.Equal(t, "worldB", envs[0].WorldID)
}

func TestResetTearsDownCurrentBindings(t *testing.T) {
	src := newStubSource()
	w := src.add("w1")
	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	_, err := m.Subscribe(context.Background(), "s1", "w1", "")
	require.NoError(t, err)
	_, err = m.Subscribe(context.Background(), "s2", "w1", "")
	require.NoError(t, err)

	m.Reset()
	assert.Empty(t, m.Bindings())

	_, err = w.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "hi", ChatID: "main",
	}))
	require.NoError(t, err)
	assert.Empty(t, rec.envelopes())

	// Reset retires the ids it tore down.
	_, err = m.Subscribe(context.Background(), "s1", "w1", "")
	require.ErrorIs(t, err, ErrReused)

	// Fresh ids keep working.
	res, err := m.Subscribe(context.Background(), "s3", "w1", "")
	require.NoError(t, err)
	assert.False(t, res.Stale)
}

func TestResetLeavesInFlightSubscribeAlone(t *testing.T) {
	src := newStubSource()
	src.add("w1")
	w2 := src.add("w2")
	gate := src.gate("w2")
	src.calls = make(chan string, 4)
	rec := &sinkRecorder{}
	m := NewManager(src, rec.sink)

	_, err := m.Subscribe(context.Background(), "s1", "w1", "")
	require.NoError(t, err)
	require.Equal(t, "w1", <-src.calls)

	done := make(chan Result, 1)
	go func() {
		res, err := m.Subscribe(context.Background(), "s2", "w2", "")
		assert.NoError(t, err)
		done <- res
	}()

	// Wait for the subscribe to reach the blocking world resolution.
	require.Equal(t, "w2", <-src.calls)

	m.Reset()
	close(gate)

	res := <-done
	assert.False(t, res.Stale)

	bindings := m.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "s2", bindings[0].SubscriptionID)

	_, err = w2.Bus().Publish(core.TopicMessages, core.NewMessageEvent(core.Message{
		Sender: "alice", Role: core.RoleUser, Content: "hi", ChatID: "main",
	}))
	require.NoError(t, err)
	require.Len(t, rec.envelopes(), 1)
}

func TestSubscribeEmptyIDRejected(t *testing.T) {
	m := NewManager(newStubSource(), nil)
	_, err := m.Subscribe(context.Background(), "", "w1", "")
	require.Error(t, err)
}
