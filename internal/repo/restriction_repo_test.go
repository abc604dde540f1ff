package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

func TestRestriction_UpsertGetDelete(t *testing.T) {
	db := newRepoDB(t, &domain.Restriction{})
	ctx := context.Background()

	if _, err := GetRestriction(ctx, db, "conv_1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound before insert, got %v", err)
	}

	r, err := UpsertRestriction(ctx, db, "conv_1", nil, "spam")
	if err != nil {
		t.Fatalf("UpsertRestriction: %v", err)
	}
	if r.Until != nil || r.Reason != "spam" {
		t.Fatalf("unexpected restriction: %+v", r)
	}

	until := time.Now().Add(10 * time.Minute)
	if _, err := UpsertRestriction(ctx, db, "conv_1", &until, "cool off"); err != nil {
		t.Fatalf("UpsertRestriction (update): %v", err)
	}

	got, err := GetRestriction(ctx, db, "conv_1")
	if err != nil {
		t.Fatalf("GetRestriction: %v", err)
	}
	if got.Reason != "cool off" || got.Until == nil || !got.Until.Equal(until.UTC()) {
		t.Fatalf("upsert did not replace row: %+v", got)
	}
	if !got.ActiveAt(time.Now()) || got.ActiveAt(until.Add(time.Second)) {
		t.Fatalf("ActiveAt mismatch for %+v", got)
	}

	var n int64
	db.Model(&domain.Restriction{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected a single row per conversation, got %d", n)
	}

	if err := DeleteRestriction(ctx, db, "conv_1"); err != nil {
		t.Fatalf("DeleteRestriction: %v", err)
	}
	if err := DeleteRestriction(ctx, db, "conv_1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
