// Package livechat – view model
//
// This file defines ViewState, the sealed Phase union and Snapshot.
package livechat

import (
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

// ViewState is what the widget shows.
type ViewState int

const (
	// ViewClosed: nothing rendered.
	ViewClosed ViewState = iota
	// ViewIdle: only the launcher bubble.
	ViewIdle
	// ViewOpen: transcript and composer visible.
	ViewOpen
	// ViewMinimized: transcript mounted, body hidden.
	ViewMinimized
)

func (v ViewState) String() string {
	switch v {
	case ViewIdle:
		return "idle"
	case ViewOpen:
		return "open"
	case ViewMinimized:
		return "minimized"
	default:
		return "closed"
	}
}

// Phase is the send capability of the session. It is one of PhaseIdle,
// PhaseActive, PhaseRestricted or PhaseCooldown.
type Phase interface {
	isPhase()
	String() string
}

// PhaseIdle: no message sent yet for the current identity.
type PhaseIdle struct{}

// PhaseActive: the conversation has started. Polling reports whether the
// poller is currently running; it stops on inactivity.
type PhaseActive struct{ Polling bool }

// PhaseRestricted: an operator suspended sending.
type PhaseRestricted struct{ Window domain.RestrictionWindow }

// PhaseCooldown: the conversation was closed and a new one may start at
// Window.EndsAt.
type PhaseCooldown struct{ Window domain.CooldownWindow }

func (PhaseIdle) isPhase()       {}
func (PhaseActive) isPhase()     {}
func (PhaseRestricted) isPhase() {}
func (PhaseCooldown) isPhase()   {}

func (PhaseIdle) String() string       { return "idle" }
func (PhaseActive) String() string     { return "active" }
func (PhaseRestricted) String() string { return "restricted" }
func (PhaseCooldown) String() string   { return "cooldown" }

// Snapshot is an immutable copy of the session state for rendering.
type Snapshot struct {
	View  ViewState
	Phase Phase
	// Countdown is the "m:ss" time left of the blocking window; empty when
	// sending is not blocked or the restriction has no announced end.
	Countdown string
	// Reason is the restriction reason, if any.
	Reason         string
	Transcript     []domain.Message
	Unread         int
	ConversationID string
	Profile        domain.CustomerProfile
	Channel        domain.ChannelStatus
	At             time.Time
}

// CanSend reports whether Send would accept a non-empty message.
func (s Snapshot) CanSend() bool {
	if s.View == ViewClosed {
		return false
	}
	switch s.Phase.(type) {
	case PhaseRestricted, PhaseCooldown:
		return false
	}
	return true
}
