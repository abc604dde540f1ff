package domain

import (
	"fmt"
	"time"
)

// ConversationIdentity is the opaque per-tab token correlating every message
// of one chat session.
type ConversationIdentity struct {
	ID string `json:"id"`
}

// IsZero reports whether no identity has been established.
func (c ConversationIdentity) IsZero() bool { return c.ID == "" }

// GuestName is the display name used when no authenticated customer is known.
const GuestName = "Guest"

// CustomerProfile is the display identity attached to outgoing messages.
type CustomerProfile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// GuestProfile returns the fallback profile for anonymous visitors.
func GuestProfile() CustomerProfile { return CustomerProfile{DisplayName: GuestName} }

// CustomerLookup is the answer of the authenticated-customer endpoint.
// Operator marks back-office accounts, for which the widget is not shown.
type CustomerLookup struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Operator      bool   `json:"operator,omitempty"`
}

// ChannelStatus is the global availability of the support channel.
type ChannelStatus string

const (
	ChannelOnline  ChannelStatus = "online"
	ChannelAway    ChannelStatus = "away"
	ChannelOffline ChannelStatus = "offline"
)

// Valid reports whether s is a recognized status.
func (s ChannelStatus) Valid() bool {
	switch s {
	case ChannelOnline, ChannelAway, ChannelOffline:
		return true
	}
	return false
}

// RestrictionStatus is the wire answer of a restriction check. Until and
// Reason are optional.
type RestrictionStatus struct {
	Restricted bool       `json:"restricted"`
	Until      *time.Time `json:"until,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// OutgoingMessage is a customer message handed to the backend. The
// IdempotencyKey carries the optimistic temporary id so a retried request
// cannot create a second server message.
type OutgoingMessage struct {
	ConversationID string
	Body           string
	SenderName     string
	CustomerEmail  string
	IdempotencyKey string
}

// CooldownWindow is the post-closure wait period of one identity.
type CooldownWindow struct {
	EndsAt time.Time
}

// Active reports whether the window still blocks sending at now.
func (w CooldownWindow) Active(now time.Time) bool { return now.Before(w.EndsAt) }

// Remaining returns the time left at now, never negative.
func (w CooldownWindow) Remaining(now time.Time) time.Duration {
	return clampRemaining(w.EndsAt.Sub(now))
}

// RestrictionWindow is the client-side view of an active restriction.
// A zero Until means no announced end: the window lasts until the backend
// reports the identity as not restricted.
type RestrictionWindow struct {
	Until  time.Time
	Reason string
}

// Active reports whether the window still blocks sending at now.
func (w RestrictionWindow) Active(now time.Time) bool {
	return w.Until.IsZero() || now.Before(w.Until)
}

// Remaining returns the time left at now; zero for open-ended windows.
func (w RestrictionWindow) Remaining(now time.Time) time.Duration {
	if w.Until.IsZero() {
		return 0
	}
	return clampRemaining(w.Until.Sub(now))
}

func clampRemaining(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// FormatCountdown renders d as "m:ss", rounding partial seconds up so a
// window of exactly two minutes reads "2:00" and only an elapsed window reads
// "0:00".
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
