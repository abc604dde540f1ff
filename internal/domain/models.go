// Package domain defines the shared types of the live-chat system: chat
// messages exchanged between a storefront customer and support, the
// identity/profile of a chat tab, the time-bounded windows that gate sending,
// and the GORM persistence models used by the support backend and by the
// tab-scoped state store.
package domain

import (
	"time"
)

// SenderType classifies who authored a message.
type SenderType string

const (
	// SenderCustomer is the storefront visitor.
	SenderCustomer SenderType = "customer"
	// SenderAdmin is a human operator (or the auto-responder acting as one).
	SenderAdmin SenderType = "admin"
	// SenderSupport is a support-side automated notice that is not folded into
	// the customer's transcript by polling.
	SenderSupport SenderType = "support"
	// SenderSystem marks control messages; a system message in a poll batch
	// means an operator closed the conversation.
	SenderSystem SenderType = "system"
)

// Known reports whether s is one of the four defined sender types.
func (s SenderType) Known() bool {
	switch s {
	case SenderCustomer, SenderAdmin, SenderSupport, SenderSystem:
		return true
	}
	return false
}

// Message is a single chat line.
//
// Fields:
//   - ID: server-assigned UUID, or a local temporary id ("tmp_…") until the
//     send is acknowledged.
//   - ConversationID: the per-tab conversation identity the message belongs to.
//   - Body: text content.
//   - SenderType / SenderName: author classification and display name.
//   - CustomerEmail: optional e-mail captured with customer messages; never
//     serialized back to clients.
//   - CreatedAt: server timestamp (local timestamp for optimistic messages).
type Message struct {
	ID             string     `json:"id"              gorm:"type:varchar(64);primaryKey"`
	ConversationID string     `json:"conversation_id" gorm:"type:varchar(64);not null;index:idx_conv_msgs,priority:1"`
	Body           string     `json:"body"            gorm:"type:text;not null"`
	SenderType     SenderType `json:"sender_type"     gorm:"type:varchar(16);not null;check:sender_type IN ('customer','admin','support','system')"`
	SenderName     string     `json:"sender_name"     gorm:"type:varchar(255)"`
	CustomerEmail  string     `json:"-"               gorm:"type:varchar(255)"`
	CreatedAt      time.Time  `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Restriction is an operator-imposed suspension of a conversation's ability
// to send. Until is nil for a restriction without an announced end.
type Restriction struct {
	ConversationID string     `json:"conversation_id" gorm:"type:varchar(64);primaryKey"`
	Until          *time.Time `json:"until,omitempty" gorm:"index"`
	Reason         string     `json:"reason,omitempty" gorm:"type:varchar(255)"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Restriction.
func (Restriction) TableName() string { return "restrictions" }

// ActiveAt reports whether the restriction still applies at now.
func (r Restriction) ActiveAt(now time.Time) bool {
	return r.Until == nil || now.Before(*r.Until)
}

// TabState is one durable key/value entry of a chat tab. It backs the only
// engine state that survives a reload: the conversation id and the cooldown
// end timestamp.
type TabState struct {
	TabID     string    `gorm:"type:varchar(64);primaryKey"`
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the database table name for TabState.
func (TabState) TableName() string { return "tab_state" }
