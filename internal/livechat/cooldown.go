// Package livechat – cooldown persistence
//
// The cooldown end is the only window that survives a reload. It is stored
// as RFC3339Nano under KeyCooldownEndsAt; an unparsable value reads as absent.
package livechat

import (
	"context"
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

// loadCooldown reads the persisted cooldown. ok is false when nothing usable
// is stored; an unparsable value is treated as absent.
func loadCooldown(ctx context.Context, store StateStore) (domain.CooldownWindow, bool, error) {
	v, ok, err := store.Get(ctx, KeyCooldownEndsAt)
	if err != nil || !ok {
		return domain.CooldownWindow{}, false, err
	}
	endsAt, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return domain.CooldownWindow{}, false, nil
	}
	return domain.CooldownWindow{EndsAt: endsAt}, true, nil
}

func saveCooldown(ctx context.Context, store StateStore, w domain.CooldownWindow) error {
	return store.Put(ctx, KeyCooldownEndsAt, w.EndsAt.UTC().Format(time.RFC3339Nano))
}

func clearCooldown(ctx context.Context, store StateStore) error {
	return store.Delete(ctx, KeyCooldownEndsAt)
}
