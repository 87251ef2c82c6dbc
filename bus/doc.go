// Package bus provides the in-memory implementation of core.EventBus.
//
// Each world owns one Bus. Events are validated against a per-type JSON
// schema, stamped with id and timestamp, retained in a bounded ring, and
// delivered synchronously to topic subscribers in subscription order. An
// event that fails validation is counted as dropped and never reaches
// history or any subscriber.
//
// The implementations here are deliberately synchronous: delivery happens on
// the publisher's goroutine, which gives callers a simple ordering guarantee
// (a publisher observes its own event fully delivered before Publish
// returns) at the cost of handler latency. Handlers that need to do slow
// work should hand off to their own goroutine.
package bus
