// Package livechat – conversation identity
//
// This file implements the tab-scoped conversation id: created on first use,
// stable until a cooldown window fully elapses, then discarded.
package livechat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-livechat/internal/domain"
)

// IdentityStore hands out the tab's conversation identity.
type IdentityStore struct {
	store StateStore
	log   zerolog.Logger
	newID func() string
}

// NewIdentityStore returns an IdentityStore over store.
func NewIdentityStore(store StateStore, logger zerolog.Logger) *IdentityStore {
	return &IdentityStore{store: store, log: logger, newID: NewConversationID}
}

// GetOrCreate returns the stored identity, creating and persisting one when
// none exists. A read error counts as absence; a write error is logged and
// the new identity is returned anyway.
func (s *IdentityStore) GetOrCreate(ctx context.Context) domain.ConversationIdentity {
	v, ok, err := s.store.Get(ctx, KeyConversationID)
	if err != nil {
		s.log.Warn().Err(err).Msg("identity read failed; creating a new one")
	}
	if err == nil && ok && strings.TrimSpace(v) != "" {
		return domain.ConversationIdentity{ID: v}
	}

	id := domain.ConversationIdentity{ID: s.newID()}
	if err := s.store.Put(ctx, KeyConversationID, id.ID); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", id.ID).Msg("identity write failed")
	}
	return id
}

// Discard forgets the stored identity so the next GetOrCreate starts a new
// conversation.
func (s *IdentityStore) Discard(ctx context.Context) {
	if err := s.store.Delete(ctx, KeyConversationID); err != nil {
		s.log.Warn().Err(err).Msg("identity discard failed")
	}
}
