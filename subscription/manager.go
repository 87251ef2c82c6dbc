package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"agentworld/core"
	"agentworld/logging"
)

// ErrReused is returned when a subscription id that has already been
// unsubscribed is offered again. Ids are single-use tokens.
var ErrReused = errors.New("subscription id already used")

// WorldSource resolves a world id to a live world, loading it when needed.
// Absent worlds are reported as (nil, nil).
type WorldSource interface {
	LoadWorld(ctx context.Context, id string) (*core.World, error)
}

// Envelope tags a forwarded event with the subscription that delivered it.
type Envelope struct {
	SubscriptionID string     `json:"subscriptionId"`
	WorldID        string     `json:"worldId"`
	Event          core.Event `json:"event"`
}

// Sink receives every event forwarded on behalf of a bound subscription.
type Sink func(Envelope)

// Result reports the outcome of a Subscribe call. Stale marks an attempt
// that was superseded by a newer call for the same id before it finished
// binding; the caller holds no binding in that case.
type Result struct {
	SubscriptionID string
	WorldID        string
	ChatID         string
	Stale          bool
}

// Binding is the externally visible view of one live subscription.
type Binding struct {
	SubscriptionID string
	WorldID        string
	ChatID         string
}

type entryState int

const (
	statePending entryState = iota + 1
	stateBound
	stateTerminal
)

// entry tracks one subscription id across its whole lifetime. gen increases
// on every subscribe attempt and on teardown, so in-flight attempts and
// forwarding closures can detect that they have been superseded.
type entry struct {
	gen     uint64
	state   entryState
	worldID string
	chatID  string
	cancel  []func()
}

// Options configure a Manager.
type Options struct {
	// Logger receives binding lifecycle logs. Defaults to a no-op logger.
	Logger logging.Logger
}

// Manager maps caller-supplied subscription ids to (world, chat) bindings
// and relays the bound world's events to a single sink. Each id is bound at
// most once at a time; the newest subscribe attempt for an id always wins.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	source WorldSource
	sink   Sink
	logger logging.Logger
}

// NewManager returns a Manager that resolves worlds through source and
// forwards events to sink.
func NewManager(source WorldSource, sink Sink, optFns ...func(o *Options)) *Manager {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if sink == nil {
		sink = func(Envelope) {}
	}
	return &Manager{
		entries: make(map[string]*entry),
		source:  source,
		sink:    sink,
		logger:  logging.OrNop(opts.Logger),
	}
}

// Subscribe binds subscriptionID to the given world, scoped to chatID when
// non-empty. Reusing an unsubscribed id fails with ErrReused before any
// binding is attempted. When concurrent calls race on the same id the
// newest one wins; older calls back out and return a Result with Stale set
// instead of an error.
func (m *Manager) Subscribe(ctx context.Context, subscriptionID, worldID, chatID string) (Result, error) {
	if subscriptionID == "" {
		return Result{}, errors.New("subscription id must not be empty")
	}

	m.mu.Lock()
	e, ok := m.entries[subscriptionID]
	if ok && e.state == stateTerminal {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("subscribe %s: %w", subscriptionID, ErrReused)
	}
	if !ok {
		e = &entry{}
		m.entries[subscriptionID] = e
	}
	e.gen++
	gen := e.gen
	old := e.cancel
	e.cancel = nil
	e.state = statePending
	m.mu.Unlock()

	// Any earlier binding for this id is superseded from this point on.
	runAll(old)

	w, err := m.source.LoadWorld(ctx, worldID)
	if err != nil {
		return Result{}, fmt.Errorf("subscribe %s: %w", subscriptionID, err)
	}
	if w == nil {
		return Result{}, fmt.Errorf("subscribe %s: world %s not found", subscriptionID, worldID)
	}
	b := w.Bus()
	if b == nil {
		return Result{}, fmt.Errorf("subscribe %s: world %s has no event bus", subscriptionID, worldID)
	}

	if !m.currentAttempt(subscriptionID, gen) {
		return Result{SubscriptionID: subscriptionID, WorldID: worldID, ChatID: chatID, Stale: true}, nil
	}

	fwd := func(ev core.Event) {
		if !m.currentBinding(subscriptionID, gen) {
			return
		}
		if msg, ok := ev.MessageOf(); ok && chatID != "" && msg.ChatID != chatID {
			return
		}
		m.sink(Envelope{SubscriptionID: subscriptionID, WorldID: worldID, Event: ev})
	}

	var unsubs []func()
	for _, topic := range []string{core.TopicMessages, core.TopicWorld, core.TopicSSE} {
		u, err := b.Subscribe(topic, fwd, nil)
		if err != nil {
			runAll(unsubs)
			return Result{}, fmt.Errorf("subscribe %s: %w", subscriptionID, err)
		}
		unsubs = append(unsubs, u)
	}

	m.mu.Lock()
	if e.state == stateTerminal || e.gen != gen {
		m.mu.Unlock()
		runAll(unsubs)
		m.logger.Debug("subscription superseded", "subscription_id", subscriptionID, "world_id", worldID)
		return Result{SubscriptionID: subscriptionID, WorldID: worldID, ChatID: chatID, Stale: true}, nil
	}
	e.state = stateBound
	e.worldID = worldID
	e.chatID = chatID
	e.cancel = unsubs
	m.mu.Unlock()

	m.logger.Debug("subscription bound", "subscription_id", subscriptionID, "world_id", worldID, "chat_id", chatID)
	return Result{SubscriptionID: subscriptionID, WorldID: worldID, ChatID: chatID}, nil
}

// Unsubscribe tears down the binding for subscriptionID and retires the id
// for good. Unsubscribing an id that is not bound is a no-op.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	e, ok := m.entries[subscriptionID]
	if !ok || e.state == stateTerminal {
		m.mu.Unlock()
		return
	}
	e.gen++
	e.state = stateTerminal
	unsubs := e.cancel
	e.cancel = nil
	m.mu.Unlock()

	runAll(unsubs)
	m.logger.Debug("subscription removed", "subscription_id", subscriptionID)
}

// Reset tears down every subscription bound at the moment of the call.
// Bindings created while the reset is running are left alone.
func (m *Manager) Reset() {
	type snapshot struct {
		id  string
		gen uint64
	}

	m.mu.Lock()
	var snaps []snapshot
	for id, e := range m.entries {
		if e.state == stateBound {
			snaps = append(snaps, snapshot{id: id, gen: e.gen})
		}
	}
	m.mu.Unlock()

	for _, sn := range snaps {
		m.mu.Lock()
		e, ok := m.entries[sn.id]
		if !ok || e.state != stateBound || e.gen != sn.gen {
			m.mu.Unlock()
			continue
		}
		e.gen++
		e.state = stateTerminal
		unsubs := e.cancel
		e.cancel = nil
		m.mu.Unlock()

		runAll(unsubs)
	}
	m.logger.Debug("subscriptions reset", "count", len(snaps))
}

// Bindings lists the currently bound subscriptions, ordered by id.
func (m *Manager) Bindings() []Binding {
	m.mu.Lock()
	var out []Binding
	for id, e := range m.entries {
		if e.state == stateBound {
			out = append(out, Binding{SubscriptionID: id, WorldID: e.worldID, ChatID: e.chatID})
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubscriptionID < out[j].SubscriptionID })
	return out
}

// currentAttempt reports whether gen is still the latest subscribe attempt
// for the id, bound or not.
func (m *Manager) currentAttempt(id string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	return ok && e.state != stateTerminal && e.gen == gen
}

// currentBinding reports whether gen identifies the live binding for the id.
// Forwarding closures consult this before every delivery so superseded
// bindings never reach the sink.
func (m *Manager) currentBinding(id string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	return ok && e.state == stateBound && e.gen == gen
}

func runAll(fns []func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
