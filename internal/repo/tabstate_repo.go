// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the tab-scoped key/value store that
// keeps a chat tab's conversation id and cooldown deadline across reloads.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-livechat/internal/domain"
)

// TabStateStore scopes the tab_state table to a single tab. Two stores with
// different tab ids never see each other's keys.
type TabStateStore struct {
	db    *gorm.DB
	tabID string
}

// NewTabStateStore returns a store bound to tabID. The table must exist
// (see MigrateTabState).
func NewTabStateStore(db *gorm.DB, tabID string) *TabStateStore {
	return &TabStateStore{db: db, tabID: tabID}
}

// Get returns the value stored under key; ok is false when absent.
func (s *TabStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row domain.TabState
	err := s.db.WithContext(ctx).
		Where("tab_id = ? AND key = ?", s.tabID, key).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *TabStateStore) Put(ctx context.Context, key, value string) error {
	row := domain.TabState{TabID: s.tabID, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tab_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// Delete removes key. Deleting a missing key is not an error.
func (s *TabStateStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("tab_id = ? AND key = ?", s.tabID, key).
		Delete(&domain.TabState{}).Error
}
