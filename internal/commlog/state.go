// Package commlog owns the delivery lifecycle of communication log entries.
//
//	PENDING -> SENT -> DELIVERED
//	   |         |
//	   +-> FAILED <-+
//
// FAILED and DELIVERED are terminal. Every transition is a compare-and-set on
// the current status, so concurrent writers cannot move an entry backwards.
package commlog

import (
	"errors"

	"github.com/rafaeljc/herald/internal/store"
)

// ErrIllegalTransition is returned when a caller asks for an edge the state
// machine does not have.
var ErrIllegalTransition = errors.New("illegal status transition")

var transitions = map[store.MessageStatus][]store.MessageStatus{
	store.StatusPending: {store.StatusSent, store.StatusFailed},
	store.StatusSent:    {store.StatusDelivered, store.StatusFailed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to store.MessageStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves s.
func IsTerminal(s store.MessageStatus) bool {
	return s.IsValid() && len(transitions[s]) == 0
}
