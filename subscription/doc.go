// Package subscription bridges world event buses to external consumers.
//
// Callers bind their own subscription ids to a (world, chat) scope through a
// Manager. The Manager resolves the world, attaches to its event bus, and
// relays matching events to a single sink, each tagged with the owning id.
// Ids are single-use: once unsubscribed they cannot be bound again. When
// concurrent subscribe calls race on the same id, the newest call wins and
// older ones back out cleanly.
package subscription
