// Package livechat implements the storefront live-chat session engine: the
// per-tab conversation identity, customer profile resolution, the cooldown
// and restriction windows that gate sending, the activity-gated polling
// scheduler, message reconciliation and the Session facade tying them
// together.
//
// A Session is owned by one tab. It runs a small set of supervised
// goroutines (poller, restriction monitor, two 1 Hz countdowns) that are
// stopped by context cancellation whenever the state they serve goes away.
package livechat

import (
	"context"
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

// Backend is the support service as seen by the engine. Implementations
// must be safe for concurrent use; the poller, the restriction monitor and
// Send may call it at the same time.
type Backend interface {
	// ResolveCustomer looks up the authenticated customer, if any.
	ResolveCustomer(ctx context.Context) (domain.CustomerLookup, error)
	// ChannelStatus reports the global availability of support.
	ChannelStatus(ctx context.Context) (domain.ChannelStatus, error)
	// FetchMessages returns the conversation's messages created strictly
	// after the given instant, or all of them when after is zero.
	FetchMessages(ctx context.Context, conversationID string, after time.Time) ([]domain.Message, error)
	// SendMessage stores a customer message and returns it with its
	// server-assigned id.
	SendMessage(ctx context.Context, msg domain.OutgoingMessage) (domain.Message, error)
	// CheckRestriction reports whether the conversation may currently send.
	CheckRestriction(ctx context.Context, conversationID string) (domain.RestrictionStatus, error)
}
