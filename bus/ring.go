package bus

import "agentworld/core"

// ring is a fixed-capacity event buffer that evicts the oldest entry once
// full. Not safe for concurrent use; the Bus serializes access.
type ring struct {
	buf   []core.Event
	head  int // index of oldest entry
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]core.Event, capacity)}
}

// push appends e, evicting the oldest entry when the buffer is full.
func (r *ring) push(e core.Event) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

// len reports how many events are retained.
func (r *ring) len() int { return r.count }

// cap reports the retention bound.
func (r *ring) cap() int { return len(r.buf) }

// snapshot returns retained events oldest first.
func (r *ring) snapshot() []core.Event {
	out := make([]core.Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
