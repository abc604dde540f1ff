package livechat

import "errors"

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSendBlocked is returned by Send while a cooldown or restriction is active.
	ErrSendBlocked = errors.New("sending is blocked")
	// ErrHidden is returned when the widget is not shown for this visitor
	// (operator account, administrative route or offline channel).
	ErrHidden = errors.New("chat is not available")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
	// ErrNotMounted is returned by Send before Mount.
	ErrNotMounted = errors.New("session not mounted")
)
