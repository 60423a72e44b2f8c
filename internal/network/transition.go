package network

import (
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
)

// Transition represents a connectivity change.
type Transition struct {
	From      domain.NetworkState
	To        domain.NetworkState
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to domain.NetworkState) Transition {
	return Transition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	}
}

// IsValid reports whether the transition is an actual edge between the two
// known states. Online ⇄ Offline are the only valid transitions.
func (t Transition) IsValid() bool {
	switch {
	case t.From == domain.NetworkOnline && t.To == domain.NetworkOffline:
		return true
	case t.From == domain.NetworkOffline && t.To == domain.NetworkOnline:
		return true
	default:
		return false
	}
}

// Reconnected is true for the Offline → Online edge.
func (t Transition) Reconnected() bool {
	return t.From == domain.NetworkOffline && t.To == domain.NetworkOnline
}
