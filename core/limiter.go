package core

import "sync"

// CallLimiter bounds how many consecutive agent turns a chat may take
// before a human has to speak again. A human message resets the chain.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter allowing max consecutive agent turns.
// If max <= 0, the chain is unbounded.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Allow consumes one agent turn and reports whether it was within the
// limit. Once it returns false, it keeps returning false until Reset.
func (cl *CallLimiter) Allow() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.max > 0 && cl.count >= cl.max {
		return false
	}
	cl.count++
	return true
}

// Reset clears the consecutive-turn counter.
func (cl *CallLimiter) Reset() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.count = 0
}

// Count returns the current length of the agent turn chain.
func (cl *CallLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return cl.count
}

// Remaining returns how many agent turns are left before the limit.
func (cl *CallLimiter) Remaining() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.max <= 0 {
		return -1 // unlimited
	}
	if cl.count >= cl.max {
		return 0
	}
	return cl.max - cl.count
}
