// Package agentworld provides a high-level façade over the world registry,
// agent runtime and streaming services enabling rapid construction of
// multi-agent conversation systems. Most applications interact with this
// package by:
//  1. Creating an Orchestrator via New() (optionally overriding the default
//     in-memory store and registering model providers)
//  2. Creating worlds and agents through Worlds()
//  3. Sending messages with Broadcast/Send and observing the resulting
//     agent turns through Subscribe
//
// The façade wires the services together while keeping setup ergonomics
// concise. All defaults are safe for local development and testing;
// production deployments typically supply a durable store implementation
// and a structured logger.
package agentworld

import (
	"context"

	"agentworld/agent"
	"agentworld/approval"
	"agentworld/bus"
	"agentworld/core"
	"agentworld/logging"
	"agentworld/model"
	"agentworld/storage"
	"agentworld/subscription"
	"agentworld/world"
)

// Options configures the Orchestrator.
type Options struct {
	// Store persists worlds and agents (defaults to an in-memory store).
	Store core.Store

	// Models maps provider names to model implementations. More can be
	// registered later through RegisterModel.
	Models map[string]model.Model

	// HistoryCapacity bounds each new world's event history. Worlds created
	// with an explicit capacity keep their own; zero here keeps the bus
	// default.
	HistoryCapacity int

	// MemoryWindow is how many remembered messages feed each agent prompt.
	MemoryWindow int

	// Retention caps agent memory length; zero keeps everything.
	Retention int

	// Sink receives the events forwarded for client subscriptions. A nil
	// sink discards them until Subscriptions is rebuilt with one.
	Sink subscription.Sink

	// Logger (defaults to a no-op logger if nil).
	Logger logging.Logger
}

// Orchestrator is the high-level façade aggregating the registry, runtime,
// subscription manager and approval gate of one process.
type Orchestrator struct {
	registry *world.Registry
	runtime  *agent.Runtime
	subs     *subscription.Manager
	gate     *approval.Gate
	resolver *model.Resolver
}

// New creates an Orchestrator with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Store: storage.NewMemoryStore(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	resolver := model.NewResolver()
	for provider, m := range opts.Models {
		resolver.Register(provider, m)
	}

	gate := approval.NewGate(func(o *approval.Options) {
		o.Logger = opts.Logger
	})
	runtime := agent.NewRuntime(resolver, func(o *agent.Options) {
		o.MemoryWindow = opts.MemoryWindow
		o.Retention = opts.Retention
		o.Gate = gate
		o.Logger = opts.Logger
	})
	registry := world.NewRegistry(runtime, func(o *world.Options) {
		o.Store = opts.Store
		o.Logger = opts.Logger
		if opts.HistoryCapacity > 0 {
			o.NewBus = func(historyCapacity int) core.EventBus {
				if historyCapacity <= 0 {
					historyCapacity = opts.HistoryCapacity
				}
				return bus.New(func(bo *bus.Options) { bo.HistoryCapacity = historyCapacity })
			}
		}
	})
	subs := subscription.NewManager(registry, opts.Sink, func(o *subscription.Options) {
		o.Logger = opts.Logger
	})

	return &Orchestrator{
		registry: registry,
		runtime:  runtime,
		subs:     subs,
		gate:     gate,
		resolver: resolver,
	}
}

// Worlds returns the world registry, the entry point for world, agent and
// chat management.
func (o *Orchestrator) Worlds() *world.Registry { return o.registry }

// Runtime returns the agent runtime driving response turns.
func (o *Orchestrator) Runtime() *agent.Runtime { return o.runtime }

// Subscriptions returns the manager for client event streams.
func (o *Orchestrator) Subscriptions() *subscription.Manager { return o.subs }

// Approvals returns the human-in-the-loop gate.
func (o *Orchestrator) Approvals() *approval.Gate { return o.gate }

// RegisterModel adds a model under the given provider name.
func (o *Orchestrator) RegisterModel(provider string, m model.Model) {
	o.resolver.Register(provider, m)
}

// Broadcast delivers a human message to every agent of the world's chat.
func (o *Orchestrator) Broadcast(ctx context.Context, worldID, content, sender, chatID string) (core.Message, error) {
	return o.registry.BroadcastMessage(ctx, worldID, content, sender, chatID)
}

// Send delivers a human message addressed to one agent of the world.
func (o *Orchestrator) Send(ctx context.Context, worldID, target, content, sender, chatID string) (core.Message, error) {
	return o.registry.SendMessage(ctx, worldID, target, content, sender, chatID)
}

// Subscribe binds a client subscription id to a world, scoped to a chat when
// chatID is non-empty. Events arrive at the sink the Orchestrator was built
// with.
func (o *Orchestrator) Subscribe(ctx context.Context, subscriptionID, worldID, chatID string) (subscription.Result, error) {
	return o.subs.Subscribe(ctx, subscriptionID, worldID, chatID)
}

// Unsubscribe retires a client subscription id.
func (o *Orchestrator) Unsubscribe(subscriptionID string) {
	o.subs.Unsubscribe(subscriptionID)
}
