// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for operator
// restrictions. A conversation has at most one restriction row.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-livechat/internal/domain"
)

// UpsertRestriction creates or replaces the restriction of a conversation.
func UpsertRestriction(ctx context.Context, db *gorm.DB, conversationID string, until *time.Time, reason string) (*domain.Restriction, error) {
	now := time.Now().UTC()
	r := &domain.Restriction{
		ConversationID: conversationID,
		Reason:         reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if until != nil {
		u := until.UTC()
		r.Until = &u
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"until", "reason", "updated_at"}),
	}).Create(r).Error
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRestriction returns the restriction row of a conversation or ErrNotFound.
// Expiry is not evaluated here; callers decide with Restriction.ActiveAt.
func GetRestriction(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Restriction, error) {
	var r domain.Restriction
	if err := db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRestriction removes the restriction of a conversation. Returns
// ErrNotFound when there was nothing to delete.
func DeleteRestriction(ctx context.Context, db *gorm.DB, conversationID string) error {
	res := db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&domain.Restriction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
