package core

import "time"

// Handler consumes one delivered event. Handlers run on the publishing
// goroutine; a handler that blocks stalls delivery for its topic.
type Handler func(Event)

// Filter narrows delivery or history to events matching every set field.
// Zero-valued fields match everything.
type Filter struct {
	// Types keeps only events whose type is in the set.
	Types []EventType
	// Sender keeps only events whose logical sender matches exactly.
	Sender string
	// Recipient keeps only events addressed to the given recipient.
	Recipient string
	// Since keeps only events stamped at or after this instant.
	Since time.Time
	// Until keeps only events stamped strictly before this instant.
	Until time.Time
	// Limit caps how many history entries are returned, newest kept.
	// Zero means no cap. Ignored for live delivery.
	Limit int
}

// Match reports whether the event passes every set field of the filter. A
// nil filter matches everything.
func (f *Filter) Match(e Event) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if e.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Sender != "" && e.SenderOf() != f.Sender {
		return false
	}
	if f.Recipient != "" && e.RecipientOf() != f.Recipient {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// BusStats is a point-in-time snapshot of one bus.
type BusStats struct {
	// Published counts events accepted since the bus was created,
	// including events later evicted from history.
	Published uint64 `json:"published"`
	// Dropped counts publishes rejected by validation.
	Dropped uint64 `json:"dropped"`
	// CountsByType breaks Published down per event type.
	CountsByType map[EventType]uint64 `json:"countsByType"`
	// Subscribers maps topic name to current subscriber count.
	Subscribers map[string]int `json:"subscribers"`
	// HistorySize is the number of events currently retained.
	HistorySize int `json:"historySize"`
	// HistoryCapacity is the retention bound.
	HistoryCapacity int `json:"historyCapacity"`
}

// EventBus is the per-world publish/subscribe fabric. Implementations must
// be safe for concurrent use. Publish validates, stamps, and stores the
// event before any subscriber sees it, and delivers to subscribers of the
// named topic in subscription order.
type EventBus interface {
	// Publish validates the event against its type's schema, assigns id
	// and timestamp, appends it to history, and delivers it to the
	// topic's subscribers. It returns the stamped event. A validation
	// failure returns ValidationError and delivers nothing.
	Publish(topic string, e Event) (Event, error)

	// Subscribe registers a handler on a topic, optionally narrowed by a
	// filter, and returns an unsubscribe function. Unsubscribing twice is
	// harmless.
	Subscribe(topic string, h Handler, f *Filter) (func(), error)

	// History returns retained events matching the filter, oldest first.
	History(f *Filter) []Event

	// Stats reports a snapshot of counters and subscriber counts.
	Stats() BusStats

	// Close rejects further publishes and drops all subscribers.
	Close()
}
