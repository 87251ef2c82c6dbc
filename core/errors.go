package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across packages. Absence of a world or agent is
// not an error; lookups report it with nil or false returns instead.
var (
	// ErrBusClosed is returned by Publish and Subscribe after Close.
	ErrBusClosed = errors.New("event bus is closed")
	// ErrAgentExists is returned when adding an agent whose id is taken.
	ErrAgentExists = errors.New("agent already exists")
	// ErrWorldNotFound marks operations that cannot proceed without the
	// world, such as message sends. Plain lookups report absence with nil.
	ErrWorldNotFound = errors.New("world not found")
	// ErrAgentNotFound marks a directed send whose target does not exist.
	ErrAgentNotFound = errors.New("agent not found")
)

// ValidationError reports an event rejected before delivery. Reasons holds
// one entry per violated schema constraint.
type ValidationError struct {
	Type    EventType
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s event: %s", e.Type, strings.Join(e.Reasons, "; "))
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
