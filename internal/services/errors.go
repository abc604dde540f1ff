// Package services defines the business logic of the support backend.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

// Message errors.
var (
	// ErrEmptyMessage is returned when a message body is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a message body exceeds the configured limit.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidConversation is returned for a blank or oversized conversation id.
	ErrInvalidConversation = errors.New("invalid conversation id")
)

// Conversation errors.
var (
	// ErrConversationNotFound indicates that no message was ever posted to the
	// conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationClosed is returned when posting to, or closing, a
	// conversation an operator already closed.
	ErrConversationClosed = errors.New("conversation closed")

	// ErrRestricted is returned when a customer posts while an operator
	// restriction is active.
	ErrRestricted = errors.New("conversation restricted")

	// ErrNotRestricted is returned when lifting a restriction that does not exist.
	ErrNotRestricted = errors.New("conversation not restricted")

	// ErrInvalidRestriction is returned when a restriction would end in the past.
	ErrInvalidRestriction = errors.New("restriction must end in the future")
)

// ErrInvalidStatus is returned for an unknown channel status value.
var ErrInvalidStatus = errors.New("invalid channel status")
