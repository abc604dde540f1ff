// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate query behind the weak
// ETag of the operator transcript listing.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-livechat/internal/domain"
)

// MessagesStats returns the number of messages in a conversation and the
// newest CreatedAt among them. latest is nil when the conversation is empty.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, latest *time.Time, err error) {
	scoped := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)
	}

	if err = scoped().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Scan into a struct; MAX() comes back as TEXT in SQLite.
	var row struct {
		CreatedAt time.Time
	}
	if err = scoped().Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
