package livechat

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	conversationPrefix = "conv_"
	tempPrefix         = "tmp_"
)

// NewConversationID returns a fresh conversation identity token: a
// millisecond timestamp followed by a random suffix.
func NewConversationID() string { return conversationPrefix + ulid.Make().String() }

// NewTempID returns a temporary id for an optimistic customer message.
func NewTempID() string { return tempPrefix + ulid.Make().String() }

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool { return strings.HasPrefix(id, tempPrefix) }
