// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-livechat/internal/domain"
)

// NewMessage describes a message to insert. CreatedAt defaults to now (UTC).
type NewMessage struct {
	ConversationID string
	SenderType     domain.SenderType
	SenderName     string
	Body           string
	CustomerEmail  string
	CreatedAt      time.Time
}

// CreateMessage inserts a new message row with a fresh UUID.
func CreateMessage(ctx context.Context, db *gorm.DB, in NewMessage) (*domain.Message, error) {
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		Body:           in.Body,
		SenderType:     in.SenderType,
		SenderName:     in.SenderName,
		CustomerEmail:  in.CustomerEmail,
		CreatedAt:      created,
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessagesAfter returns a conversation's messages ordered deterministically
// (CreatedAt ASC, ID ASC). A zero after returns the full history; otherwise
// only messages created strictly after it. limit <= 0 means no limit.
func ListMessagesAfter(ctx context.Context, db *gorm.DB, conversationID string, after time.Time, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	q := db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if !after.IsZero() {
		q = q.Where("created_at > ?", after.UTC())
	}
	q = q.Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// HasSystemMessage reports whether the conversation already carries a
// closure (system) message.
func HasSystemMessage(ctx context.Context, db *gorm.DB, conversationID string) (bool, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Select("id").
		Where("conversation_id = ? AND sender_type = ?", conversationID, domain.SenderSystem).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CountMessages returns the number of messages in a conversation.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error
	return total, err
}

// ListMessagesPage returns a page of a conversation's messages in transcript
// order, for the operator view.
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
