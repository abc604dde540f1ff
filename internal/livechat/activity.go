package livechat

import "time"

// activityClock records the last customer send or received admin message.
// It lives in memory only and resets on reload.
type activityClock struct {
	last time.Time
}

func (a *activityClock) touch(now time.Time) {
	if now.After(a.last) {
		a.last = now
	}
}

// idle reports whether more than after has passed since the last activity.
func (a activityClock) idle(now time.Time, after time.Duration) bool {
	return now.Sub(a.last) > after
}
