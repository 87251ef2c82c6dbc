package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agentworld/core"
	"agentworld/logging"
)

// Status tracks where a request is in its lifecycle.
type Status string

const (
	// StatusPending means no valid response has arrived yet.
	StatusPending Status = "pending"
	// StatusResolved means a response picked one of the offered options.
	StatusResolved Status = "resolved"
)

var (
	// ErrUnknownRequest is returned for ids the gate never issued or that
	// were pruned.
	ErrUnknownRequest = errors.New("unknown approval request")
	// ErrAlreadyResolved is returned when a request is responded to twice.
	ErrAlreadyResolved = errors.New("approval request already resolved")
	// ErrNoOptions is returned when a request offers nothing to choose.
	ErrNoOptions = errors.New("approval request needs at least one option")
)

// UnknownOptionError reports a response that named an option the request
// never offered. The request stays pending.
type UnknownOptionError struct {
	RequestID string
	OptionID  string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("approval request %s has no option %q", e.RequestID, e.OptionID)
}

// Option is one choice offered to the responder.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Request is a pending or resolved approval. Once resolved, Decision holds
// the chosen option id and the record never changes again.
type Request struct {
	ID         string    `json:"id"`
	WorldID    string    `json:"worldId,omitempty"`
	AgentID    string    `json:"agentId,omitempty"`
	ChatID     string    `json:"chatId,omitempty"`
	Prompt     string    `json:"prompt"`
	Options    []Option  `json:"options"`
	Status     Status    `json:"status"`
	Decision   string    `json:"decision,omitempty"`
	DecidedBy  string    `json:"decidedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ResolvedAt time.Time `json:"resolvedAt,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

func (r *Request) clone() *Request {
	cp := *r
	cp.Options = append([]Option(nil), r.Options...)
	return &cp
}

func (r *Request) hasOption(optionID string) bool {
	for _, o := range r.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Options configures a Gate.
type Options struct {
	// Store persists requests. Defaults to an in-memory store.
	Store Store
	// RequestTTL stamps ExpiresAt on new requests; zero disables expiry.
	RequestTTL time.Duration
	// Logger receives request lifecycle logs.
	Logger logging.Logger
}

// Gate issues approval requests and resolves them exactly once.
type Gate struct {
	mu      sync.Mutex
	store   Store
	waiters map[string][]chan string
	ttl     time.Duration
	logger  logging.Logger
}

// NewGate creates a Gate with the given options.
func NewGate(optFns ...func(o *Options)) *Gate {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	return &Gate{
		store:   opts.Store,
		waiters: map[string][]chan string{},
		ttl:     opts.RequestTTL,
		logger:  logging.OrNop(opts.Logger),
	}
}

// Request files a new pending approval and returns its record.
func (g *Gate) Request(ctx context.Context, worldID, agentID, chatID, prompt string, options []Option) (*Request, error) {
	if len(options) == 0 {
		return nil, ErrNoOptions
	}
	req := &Request{
		ID:        core.NewID(),
		WorldID:   worldID,
		AgentID:   agentID,
		ChatID:    chatID,
		Prompt:    prompt,
		Options:   append([]Option(nil), options...),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if g.ttl > 0 {
		req.ExpiresAt = req.CreatedAt.Add(g.ttl)
	}
	if err := g.store.Create(ctx, req.clone()); err != nil {
		return nil, err
	}
	g.logger.Info("approval requested", "request_id", req.ID, "agent_id", agentID, "options", len(options))
	return req, nil
}

// Respond resolves a pending request with the chosen option. The response
// must name the same world the request was filed under. It is the only
// state transition a request ever makes:
//
//   - unknown request id or world mismatch: ErrUnknownRequest
//   - already resolved:                     ErrAlreadyResolved
//   - unknown option id:                    *UnknownOptionError, request stays pending
//
// On success every waiter receives the decision.
func (g *Gate) Respond(ctx context.Context, worldID, requestID, optionID, decidedBy string) (*Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := g.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || req.WorldID != worldID {
		return nil, ErrUnknownRequest
	}
	if req.Status == StatusResolved {
		return nil, ErrAlreadyResolved
	}
	if !req.hasOption(optionID) {
		return nil, &UnknownOptionError{RequestID: requestID, OptionID: optionID}
	}

	req.Status = StatusResolved
	req.Decision = optionID
	req.DecidedBy = decidedBy
	req.ResolvedAt = time.Now().UTC()
	if err := g.store.Update(ctx, req); err != nil {
		return nil, err
	}

	for _, ch := range g.waiters[requestID] {
		ch <- optionID
	}
	delete(g.waiters, requestID)

	g.logger.Info("approval resolved", "request_id", requestID, "decision", optionID, "decided_by", decidedBy)
	return req.clone(), nil
}

// Await blocks until the request resolves or ctx ends, returning the chosen
// option id. Awaiting an already resolved request returns immediately.
func (g *Gate) Await(ctx context.Context, requestID string) (string, error) {
	g.mu.Lock()
	req, err := g.store.Get(ctx, requestID)
	if err != nil {
		g.mu.Unlock()
		return "", err
	}
	if req == nil {
		g.mu.Unlock()
		return "", ErrUnknownRequest
	}
	if req.Status == StatusResolved {
		g.mu.Unlock()
		return req.Decision, nil
	}
	ch := make(chan string, 1)
	g.waiters[requestID] = append(g.waiters[requestID], ch)
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		g.mu.Lock()
		list := g.waiters[requestID]
		for i, cand := range list {
			if cand == ch {
				g.waiters[requestID] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		g.mu.Unlock()
		return "", ctx.Err()
	case decision := <-ch:
		return decision, nil
	}
}

// Get returns a copy of the request, or (nil, nil) when absent.
func (g *Gate) Get(ctx context.Context, requestID string) (*Request, error) {
	req, err := g.store.Get(ctx, requestID)
	if err != nil || req == nil {
		return nil, err
	}
	return req.clone(), nil
}

// Pending lists unresolved, unexpired requests, optionally narrowed to one
// world.
func (g *Gate) Pending(ctx context.Context, worldID string) ([]*Request, error) {
	return g.store.ListPending(ctx, worldID)
}

// HasPendingForChat reports whether any request is still pending for the
// given chat. Message boundaries use this to hold new traffic while a human
// decision is outstanding; the gate itself never blocks anything.
func (g *Gate) HasPendingForChat(ctx context.Context, worldID, chatID string) (bool, error) {
	pending, err := g.store.ListPending(ctx, worldID)
	if err != nil {
		return false, err
	}
	for _, req := range pending {
		if req.ChatID == chatID {
			return true, nil
		}
	}
	return false, nil
}

// Prune drops requests created before now-olderThan and returns how many
// were removed.
func (g *Gate) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return g.store.Prune(ctx, olderThan)
}
