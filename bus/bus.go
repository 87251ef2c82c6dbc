package bus

import (
	"sync"
	"time"

	"agentworld/core"
	"agentworld/logging"
)

// DefaultHistoryCapacity bounds retained events per bus unless overridden.
const DefaultHistoryCapacity = 1000

// Options configures a Bus.
type Options struct {
	// HistoryCapacity bounds the event ring. Values below 1 fall back to
	// DefaultHistoryCapacity.
	HistoryCapacity int
	// Logger receives bus lifecycle and validation failures.
	Logger logging.Logger
}

// Bus is the in-memory core.EventBus. Safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	closed    bool
	history   *ring
	subs      map[string][]*subscriber
	published uint64
	dropped   uint64
	byType    map[core.EventType]uint64
	subSeq    uint64
	logger    logging.Logger
}

type subscriber struct {
	id      uint64
	handler core.Handler
	filter  *core.Filter
}

var _ core.EventBus = (*Bus)(nil)

// Factory creates a bus with default options. It matches the per-world bus
// constructor signature the registry expects.
func Factory() core.EventBus { return New() }

// New creates a Bus with the given options.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{HistoryCapacity: DefaultHistoryCapacity}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistoryCapacity < 1 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	return &Bus{
		history: newRing(opts.HistoryCapacity),
		subs:    map[string][]*subscriber{},
		byType:  map[core.EventType]uint64{},
		logger:  logging.OrNop(opts.Logger),
	}
}

// Publish validates, stamps, stores and delivers the event. Validation runs
// before anything else; a rejected event is never stored or delivered.
func (b *Bus) Publish(topic string, e core.Event) (core.Event, error) {
	if verr := validate(e); verr != nil {
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.Warn("event rejected", "topic", topic, "type", string(e.Type), "reason", verr.Error())
		return core.Event{}, verr
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return core.Event{}, core.ErrBusClosed
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.history.push(e)
	b.published++
	b.byType[e.Type]++
	// Copy the subscriber list so handlers run outside the lock and may
	// themselves subscribe or unsubscribe.
	targets := make([]*subscriber, len(b.subs[topic]))
	copy(targets, b.subs[topic])
	b.mu.Unlock()

	for _, s := range targets {
		if s.filter.Match(e) {
			s.handler(e)
		}
	}
	return e, nil
}

// Subscribe registers a handler for a topic. Delivery order among
// subscribers of one topic follows subscription order. The returned
// function removes the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(topic string, h core.Handler, f *core.Filter) (func(), error) {
	if h == nil {
		h = func(core.Event) {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, core.ErrBusClosed
	}
	b.subSeq++
	s := &subscriber{id: b.subSeq, handler: h, filter: f}
	b.subs[topic] = append(b.subs[topic], s)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[topic]
			for i, cand := range list {
				if cand.id == s.id {
					b.subs[topic] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
	return unsubscribe, nil
}

// History returns retained events matching the filter, oldest first. A
// filter Limit keeps the newest entries.
func (b *Bus) History(f *core.Filter) []core.Event {
	b.mu.RLock()
	all := b.history.snapshot()
	b.mu.RUnlock()

	out := make([]core.Event, 0, len(all))
	for _, e := range all {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if f != nil && f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Stats reports a point-in-time snapshot.
func (b *Bus) Stats() core.BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make(map[string]int, len(b.subs))
	for topic, list := range b.subs {
		subs[topic] = len(list)
	}
	byType := make(map[core.EventType]uint64, len(b.byType))
	for typ, n := range b.byType {
		byType[typ] = n
	}
	return core.BusStats{
		Published:       b.published,
		Dropped:         b.dropped,
		CountsByType:    byType,
		Subscribers:     subs,
		HistorySize:     b.history.len(),
		HistoryCapacity: b.history.cap(),
	}
}

// Close rejects further publishes and subscriptions and drops all current
// subscribers. History stays readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.subs = map[string][]*subscriber{}
}
