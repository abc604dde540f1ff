// Package livechat – Session background loops
//
// This file owns the supervised goroutines of a session:
//
//   - monitor:          restriction check every RestrictionInterval, first
//     check immediately, fail-open on errors
//   - poller:           message fetch every PollInterval while the customer
//     is active; stops when idle and on closure
//   - cooldownTick:     countdown while a cooldown window runs
//   - restrictionTick:  countdown while a timed restriction runs
//
// Each loop is a task with a generation id. Callbacks from a loop that has
// since been replaced are dropped, so there is at most one poller per
// identity.
package livechat

import (
	"context"
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

// spawnLocked starts fn as a supervised goroutine bound to the session's
// root context. It returns nil once the session is closed.
func (s *Session) spawnLocked(fn func(ctx context.Context, id uint64)) *task {
	if s.closed {
		return nil
	}
	s.seq++
	ctx, cancel := context.WithCancel(s.root)
	t := &task{id: s.seq, cancel: cancel}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		fn(ctx, t.id)
	}()
	return t
}

func (s *Session) stopLocked(t **task) {
	if *t != nil {
		(*t).cancel()
		*t = nil
	}
}

func current(t *task, id uint64) bool { return t != nil && t.id == id }

func (s *Session) stopAllLocked() {
	s.stopLocked(&s.poller)
	s.stopLocked(&s.monitor)
	s.stopLocked(&s.cooldownTick)
	s.stopLocked(&s.restrictionTick)
}

// Restriction monitor

func (s *Session) startMonitorLocked() {
	if s.monitor != nil || s.identity.IsZero() || s.gated {
		return
	}
	convID := s.identity.ID
	s.monitor = s.spawnLocked(func(ctx context.Context, id uint64) {
		periodic[domain.RestrictionStatus]{
			interval:  s.opts.RestrictionInterval,
			immediate: true,
			fetch: func(ctx context.Context) (domain.RestrictionStatus, error) {
				return s.backend.CheckRestriction(ctx, convID)
			},
			handle: func(st domain.RestrictionStatus, err error) bool {
				return s.onRestriction(id, convID, st, err)
			},
		}.run(ctx)
	})
}

// onRestriction applies one restriction check. A failed check changes
// nothing: no restriction is imposed and an existing one stays until a
// successful check or its own expiry ends it.
func (s *Session) onRestriction(id uint64, convID string, st domain.RestrictionStatus, err error) bool {
	s.mu.Lock()
	if !current(s.monitor, id) {
		s.mu.Unlock()
		return false
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("conversation_id", convID).Msg("restriction check failed")
		return true
	}

	now := s.clock.Now()
	changed := false
	if st.Restricted {
		w := domain.RestrictionWindow{Reason: st.Reason}
		if st.Until != nil {
			w.Until = *st.Until
		}
		if w.Active(now) {
			changed = s.restriction == nil || !sameRestriction(*s.restriction, w)
			s.restriction = &w
			if w.Until.IsZero() {
				s.stopLocked(&s.restrictionTick)
			} else {
				s.startRestrictionTickLocked()
			}
		} else if s.restriction != nil {
			s.clearRestrictionLocked()
			changed = true
		}
	} else if s.restriction != nil {
		s.clearRestrictionLocked()
		changed = true
	}
	restricted := s.restriction != nil
	s.mu.Unlock()

	if changed {
		s.log.Info().Str("conversation_id", convID).Bool("restricted", restricted).Str("reason", st.Reason).Msg("restriction changed")
		s.notify()
	}
	return true
}

func sameRestriction(a, b domain.RestrictionWindow) bool {
	return a.Reason == b.Reason && a.Until.Equal(b.Until)
}

func (s *Session) clearRestrictionLocked() {
	s.restriction = nil
	s.stopLocked(&s.restrictionTick)
}

func (s *Session) startRestrictionTickLocked() {
	if s.restrictionTick != nil {
		return
	}
	s.restrictionTick = s.spawnLocked(func(ctx context.Context, id uint64) {
		every(ctx, s.opts.CountdownInterval, func() bool { return s.onRestrictionTick(id) })
	})
}

func (s *Session) onRestrictionTick(id uint64) bool {
	s.mu.Lock()
	if !current(s.restrictionTick, id) {
		s.mu.Unlock()
		return false
	}
	keep := true
	if s.restriction == nil || !s.restriction.Active(s.clock.Now()) {
		s.clearRestrictionLocked()
		keep = false
	}
	s.mu.Unlock()
	s.notify()
	return keep
}

// Cooldown

// enterCooldownLocked starts the post-closure window at now and stops
// polling. The returned effects persist the window.
func (s *Session) enterCooldownLocked(now time.Time) durableEffects {
	w := domain.CooldownWindow{EndsAt: now.Add(s.opts.Cooldown)}
	s.cooldown = &w
	s.stopLocked(&s.poller)
	s.startCooldownTickLocked()
	s.log.Info().Str("conversation_id", s.identity.ID).Time("ends_at", w.EndsAt).Msg("conversation closed; cooldown started")
	return durableEffects{saveCooldown: &w}
}

// expireCooldownLocked ends the cooldown and retires the identity together
// with every loop bound to it. The next Send starts a new conversation.
func (s *Session) expireCooldownLocked() durableEffects {
	old := s.identity.ID
	s.cooldown = nil
	s.stopLocked(&s.cooldownTick)
	s.stopLocked(&s.poller)
	s.stopLocked(&s.monitor)
	s.clearRestrictionLocked()
	s.identity = domain.ConversationIdentity{}
	s.started = false
	s.cursor = time.Time{}
	s.log.Info().Str("conversation_id", old).Msg("cooldown over; identity retired")
	return durableEffects{clearCooldown: true, discardIdentity: true}
}

func (s *Session) startCooldownTickLocked() {
	if s.cooldownTick != nil {
		return
	}
	s.cooldownTick = s.spawnLocked(func(ctx context.Context, id uint64) {
		every(ctx, s.opts.CountdownInterval, func() bool { return s.onCooldownTick(id) })
	})
}

func (s *Session) onCooldownTick(id uint64) bool {
	s.durable.Lock()
	s.mu.Lock()
	if !current(s.cooldownTick, id) || s.cooldown == nil {
		s.mu.Unlock()
		s.durable.Unlock()
		return false
	}
	var eff durableEffects
	keep := true
	if !s.cooldown.Active(s.clock.Now()) {
		eff = s.expireCooldownLocked()
		keep = false
	}
	s.mu.Unlock()
	s.applyDurable(s.root, eff)
	s.durable.Unlock()

	s.notify()
	return keep
}

// Poller

// maybeStartPollerLocked starts the poller when every precondition holds:
// an identity, a customer (not operator) whose profile lookup finished, a
// started conversation and no cooldown.
func (s *Session) maybeStartPollerLocked() {
	if s.poller != nil || s.gated || s.identity.IsZero() || s.operator ||
		!s.resolved || !s.started || s.cooldown != nil {
		return
	}
	convID := s.identity.ID
	s.poller = s.spawnLocked(func(ctx context.Context, id uint64) {
		periodic[[]domain.Message]{
			interval: s.opts.PollInterval,
			tick:     func() bool { return s.onPollTick(id) },
			fetch: func(ctx context.Context) ([]domain.Message, error) {
				s.mu.Lock()
				after := s.cursor
				s.mu.Unlock()
				return s.backend.FetchMessages(ctx, convID, after)
			},
			handle: func(batch []domain.Message, err error) bool {
				return s.onPoll(id, convID, batch, err)
			},
		}.run(ctx)
	})
	if s.poller != nil {
		s.log.Debug().Str("conversation_id", convID).Msg("polling started")
	}
}

// onPollTick stops the poller once the tab has been idle too long. Only a
// new customer message starts it again.
func (s *Session) onPollTick(id uint64) bool {
	s.mu.Lock()
	if !current(s.poller, id) {
		s.mu.Unlock()
		return false
	}
	if !s.activity.idle(s.clock.Now(), s.opts.IdleAfter) {
		s.mu.Unlock()
		return true
	}
	s.stopLocked(&s.poller)
	convID := s.identity.ID
	s.mu.Unlock()

	s.log.Debug().Str("conversation_id", convID).Msg("idle; polling stopped")
	s.notify()
	return false
}

func (s *Session) onPoll(id uint64, convID string, batch []domain.Message, err error) bool {
	if err != nil {
		s.mu.Lock()
		live := current(s.poller, id)
		s.mu.Unlock()
		if live {
			s.log.Debug().Err(err).Str("conversation_id", convID).Msg("poll failed")
		}
		return live
	}

	s.durable.Lock()
	s.mu.Lock()
	if !current(s.poller, id) {
		s.mu.Unlock()
		s.durable.Unlock()
		return false
	}
	now := s.clock.Now()
	res := Reconcile(batch, s.transcript, s.cursor, s.view == ViewOpen)
	s.cursor = res.Cursor
	s.unread += res.Unread
	if res.Admin > 0 {
		s.activity.touch(now)
	}
	var eff durableEffects
	if res.Closure {
		eff = s.enterCooldownLocked(now)
	}
	s.mu.Unlock()
	s.applyDurable(s.root, eff)
	s.durable.Unlock()

	if len(res.New) > 0 {
		s.notify()
	}
	return !res.Closure
}
