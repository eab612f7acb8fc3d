// Package match holds the recommendation lifecycle and the attach/dismiss
// workflow that turns an accepted recommendation into a CRM property linked
// to a client.
//
// Status graph:
//
//	new ──► attached
//	 │
//	 └────► dismissed
//
// attached and dismissed are terminal.
package match

import "fmt"

// Status mirrors the property_recommendations.status column.
type Status string

const (
	StatusNew       Status = "new"
	StatusAttached  Status = "attached"
	StatusDismissed Status = "dismissed"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusNew: {StatusAttached, StatusDismissed},
	// attached and dismissed are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusAttached, StatusDismissed:
		return st, nil
	}
	return "", fmt.Errorf("unknown recommendation status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status accepts no further transitions.
func IsTerminal(s Status) bool {
	_, ok := validTransitions[s]
	return !ok
}
