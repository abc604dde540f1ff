package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tbourn/go-livechat/internal/client"
	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/livechat"
)

// renderer prints session changes as chat lines. Render is called from the
// session's goroutines, so all output goes through mu.
type renderer struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]struct{}
	phase   string
	view    livechat.ViewState
	unread  int
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, printed: map[string]struct{}{}}
}

// Render prints what changed since the previous snapshot: acknowledged
// messages, phase transitions, view changes and unread counts.
func (r *renderer) Render(s livechat.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range s.Transcript {
		if livechat.IsTempID(m.ID) {
			continue
		}
		if _, seen := r.printed[m.ID]; seen {
			continue
		}
		r.printed[m.ID] = struct{}{}
		fmt.Fprintln(r.out, formatMessage(m))
	}

	if key := phaseKey(s.Phase); key != r.phase {
		prev := r.phase
		r.phase = key
		if line := phaseLine(prev, s); line != "" {
			fmt.Fprintln(r.out, "-- "+line)
		}
	}

	if s.View != r.view {
		prev := r.view
		r.view = s.View
		switch {
		case s.View == livechat.ViewMinimized:
			fmt.Fprintln(r.out, "-- chat minimized; /open to restore")
		case s.View == livechat.ViewClosed && prev != livechat.ViewClosed:
			fmt.Fprintln(r.out, "-- chat hidden; /open to show it")
		}
	}

	if s.Unread != r.unread {
		r.unread = s.Unread
		if s.Unread > 0 {
			fmt.Fprintf(r.out, "-- %d unread\n", s.Unread)
		}
	}
}

// Notice prints a line from the client itself.
func (r *renderer) Notice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "-- "+text)
}

// Status prints a one-line summary of the session.
func (r *renderer) Status(s livechat.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := fmt.Sprintf("-- view=%s phase=%s channel=%s unread=%d", s.View, phaseKey(s.Phase), s.Channel, s.Unread)
	if s.ConversationID != "" {
		line += " conversation=" + s.ConversationID
	}
	if s.Countdown != "" {
		line += " remaining=" + s.Countdown
	}
	fmt.Fprintln(r.out, line)
}

// Help lists the commands.
func (r *renderer) Help() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "-- /open /minimize /hide /status /quit; anything else is sent")
}

// SendFailed explains why a message did not go out.
func (r *renderer) SendFailed(s livechat.Snapshot, err error) {
	var msg string
	switch {
	case errors.Is(err, livechat.ErrSendBlocked):
		msg = "sending is blocked"
		if s.Countdown != "" {
			msg += " for " + s.Countdown
		}
	case errors.Is(err, livechat.ErrHidden):
		msg = "chat is hidden; /open to show it"
	case client.IsRestricted(err):
		msg = "support restricted this conversation"
	case client.IsClosed(err):
		msg = "this conversation was closed"
	default:
		msg = "message not delivered: " + err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "!! "+msg)
}

func formatMessage(m domain.Message) string {
	ts := m.CreatedAt.Local().Format("15:04")
	switch m.SenderType {
	case domain.SenderCustomer:
		return fmt.Sprintf("[%s] you: %s", ts, m.Body)
	case domain.SenderSystem:
		return fmt.Sprintf("[%s] *** %s ***", ts, m.Body)
	default:
		name := m.SenderName
		if name == "" {
			name = "Support"
		}
		return fmt.Sprintf("[%s] %s: %s", ts, name, m.Body)
	}
}

// phaseKey distinguishes a paused poller from a running one.
func phaseKey(p livechat.Phase) string {
	switch p := p.(type) {
	case nil:
		return ""
	case livechat.PhaseActive:
		if !p.Polling {
			return "paused"
		}
	}
	return p.String()
}

func phaseLine(prev string, s livechat.Snapshot) string {
	switch p := s.Phase.(type) {
	case livechat.PhaseRestricted:
		line := "support restricted sending"
		if p.Window.Reason != "" {
			line += ": " + p.Window.Reason
		}
		if s.Countdown != "" {
			line += " (" + s.Countdown + " left)"
		}
		return line
	case livechat.PhaseCooldown:
		return "conversation closed; a new one can start in " + s.Countdown
	case livechat.PhaseActive:
		if !p.Polling {
			return "updates paused; send a message to resume"
		}
	}
	if prev == "restricted" || prev == "cooldown" {
		return "you can send messages again"
	}
	return ""
}
