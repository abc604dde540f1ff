// Package livechat – transcript
//
// Append-only list of messages with an id index; temporary ids are swapped
// in place when the server acknowledges a send.
package livechat

import "github.com/tbourn/go-livechat/internal/domain"

// Transcript is the tab's append-only message list with an id index.
// It is not safe for concurrent use; the Session guards it.
type Transcript struct {
	msgs  []domain.Message
	index map[string]int
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{index: map[string]int{}}
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.msgs) }

// Has reports whether a message with id is present.
func (t *Transcript) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Append adds m unless its id is already present. It reports whether m was added.
func (t *Transcript) Append(m domain.Message) bool {
	if t.Has(m.ID) {
		return false
	}
	t.index[m.ID] = len(t.msgs)
	t.msgs = append(t.msgs, m)
	return true
}

// ReplaceID swaps a temporary id for the server-assigned one, keeping the
// message at its position. When serverID is already present the temporary
// entry is dropped instead, so the message never shows twice. It reports
// whether tempID was found.
func (t *Transcript) ReplaceID(tempID, serverID string) bool {
	i, ok := t.index[tempID]
	if !ok {
		return false
	}
	if tempID == serverID {
		return true
	}
	delete(t.index, tempID)
	if _, dup := t.index[serverID]; dup {
		t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
		t.reindex()
		return true
	}
	t.msgs[i].ID = serverID
	t.index[serverID] = i
	return true
}

// Messages returns a copy of the messages in order.
func (t *Transcript) Messages() []domain.Message {
	out := make([]domain.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Transcript) reindex() {
	t.index = make(map[string]int, len(t.msgs))
	for i, m := range t.msgs {
		t.index[m.ID] = i
	}
}
