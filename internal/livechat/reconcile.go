// Package livechat – message reconciliation
//
// This file folds poll batches into the transcript. It is pure apart from
// the Transcript append and is safe to run on the same batch twice.
package livechat

import (
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

// ReconcileResult is the outcome of folding one poll batch.
type ReconcileResult struct {
	// New holds the messages appended to the transcript, in batch order.
	New []domain.Message
	// Closure is set when a new system message was seen.
	Closure bool
	// Cursor is the advanced fetch cursor; never earlier than the input.
	Cursor time.Time
	// Unread is how many new admin messages arrived while the view was not open.
	Unread int
	// Admin counts the new admin messages.
	Admin int
}

// Reconcile folds a poll batch into t. Only admin and system messages are
// taken; the customer's own messages are already present from the
// optimistic send. Messages whose id is already known, that carry no id, or
// that have an unknown sender type are skipped. Applying the same batch twice
// adds nothing the second time.
func Reconcile(batch []domain.Message, t *Transcript, cursor time.Time, viewOpen bool) ReconcileResult {
	res := ReconcileResult{Cursor: cursor}
	for _, m := range batch {
		if m.ID == "" {
			continue
		}
		if m.SenderType != domain.SenderAdmin && m.SenderType != domain.SenderSystem {
			continue
		}
		if !t.Append(m) {
			continue
		}
		res.New = append(res.New, m)

		if m.SenderType == domain.SenderSystem {
			res.Closure = true
			continue
		}
		res.Admin++
		if !viewOpen {
			res.Unread++
		}
		if m.CreatedAt.After(res.Cursor) {
			res.Cursor = m.CreatedAt
		}
	}
	return res
}
