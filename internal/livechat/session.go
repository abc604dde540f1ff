// Package livechat – Session
//
// This file holds the Session facade that a widget drives: Mount, Open,
// Minimize, Hide, Send, Snapshot and Close. Two state tiers are kept apart.
// The durable tier (conversation id, cooldown end) lives in the StateStore
// and is touched only under the durable lock; everything else is in memory
// and reset on every mount.
//
// Send capability is reported as a Phase (idle, active, restricted,
// cooldown) and is independent of the ViewState. Visibility is gated once
// per mount: operator accounts, administrative routes and an offline
// channel keep the widget hidden and nothing is sent.
package livechat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-livechat/internal/domain"
)

// Session is the chat engine of one tab.
//
// Lock order is durable then mu. mu guards the in-memory fields and is never
// held across a Backend call; durable serializes sequences that touch the
// StateStore (identity creation and discard, cooldown persistence) so that a
// discard can never race a fresh identity.
type Session struct {
	backend Backend
	store   StateStore
	ids     *IdentityStore
	opts    Options
	log     zerolog.Logger
	clock   Clock

	durable sync.Mutex
	mu      sync.Mutex

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	seq    uint64

	mounted bool
	closed  bool
	gated   bool // hidden for this visitor: operator, admin route or offline

	view     ViewState
	channel  domain.ChannelStatus
	identity domain.ConversationIdentity
	profile  domain.CustomerProfile
	resolved bool // profile resolution finished
	// profileDone is closed once resolution has finished.
	profileDone chan struct{}
	operator    bool

	started     bool
	cooldown    *domain.CooldownWindow
	restriction *domain.RestrictionWindow
	activity    activityClock
	transcript  *Transcript
	cursor      time.Time
	unread      int

	poller          *task
	monitor         *task
	cooldownTick    *task
	restrictionTick *task
}

// task is a supervised goroutine. id tells a current loop from a stale one.
type task struct {
	id     uint64
	cancel context.CancelFunc
}

// durableEffects are StateStore writes decided under mu and applied after
// it is released.
type durableEffects struct {
	saveCooldown    *domain.CooldownWindow
	clearCooldown   bool
	discardIdentity bool
}

// NewSession returns an unmounted session.
func NewSession(backend Backend, store StateStore, opts Options) (*Session, error) {
	if backend == nil {
		return nil, errors.New("livechat: nil backend")
	}
	if store == nil {
		return nil, errors.New("livechat: nil state store")
	}
	opts = opts.withDefaults()
	root, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend:     backend,
		store:       store,
		opts:        opts,
		log:         opts.Logger.With().Str("component", "livechat").Logger(),
		clock:       opts.Clock,
		root:        root,
		cancel:      cancel,
		view:        ViewClosed,
		channel:     domain.ChannelOnline,
		profile:     domain.GuestProfile(),
		profileDone: make(chan struct{}),
		transcript:  NewTranscript(),
	}
	s.ids = NewIdentityStore(store, s.log)
	return s, nil
}

// Mount loads the durable tier, establishes the identity, checks channel
// status and starts the background work. Profile resolution runs in the
// background; the restriction monitor does not wait for it.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	if adminRoute(s.opts.Route, s.opts.AdminPrefixes) {
		s.gated = true
		s.mu.Unlock()
		s.log.Debug().Str("route", s.opts.Route).Msg("administrative route; chat hidden")
		s.notify()
		return nil
	}
	s.mu.Unlock()

	status, err := s.backend.ChannelStatus(ctx)
	if err != nil || !status.Valid() {
		s.log.Warn().Err(err).Str("status", string(status)).Msg("channel status unavailable; assuming online")
		status = domain.ChannelOnline
	}

	if status == domain.ChannelOffline {
		s.mu.Lock()
		s.channel = status
		s.gated = true
		s.mu.Unlock()
		s.log.Info().Msg("support channel offline; chat hidden")
		s.notify()
		return nil
	}

	s.durable.Lock()
	now := s.clock.Now()
	window, hasCooldown, err := loadCooldown(ctx, s.store)
	if err != nil {
		s.log.Warn().Err(err).Msg("cooldown read failed")
	}
	if hasCooldown && !window.Active(now) {
		// Elapsed while the tab was away: the conversation is over.
		if err := clearCooldown(ctx, s.store); err != nil {
			s.log.Warn().Err(err).Msg("cooldown clear failed")
		}
		s.ids.Discard(ctx)
		hasCooldown = false
	}
	ident := s.ids.GetOrCreate(ctx)
	s.durable.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.channel = status
	s.view = ViewIdle
	s.identity = ident
	s.startMonitorLocked()
	if hasCooldown {
		w := window
		s.cooldown = &w
		s.startCooldownTickLocked()
		s.log.Info().Str("conversation_id", ident.ID).Time("ends_at", w.EndsAt).Msg("cooldown resumed")
	}
	s.spawnLocked(s.resolveProfile)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Session) resolveProfile(ctx context.Context, _ uint64) {
	profile, operator := ResolveProfile(ctx, s.backend, s.log)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.profile = profile
	s.operator = operator
	s.resolved = true
	close(s.profileDone)
	if operator {
		s.log.Debug().Msg("operator account; chat hidden")
		s.gated = true
		s.view = ViewClosed
		s.stopAllLocked()
	} else {
		s.maybeStartPollerLocked()
	}
	s.mu.Unlock()
	s.notify()
}

// Open reveals the transcript and clears the unread counter.
func (s *Session) Open() {
	s.mu.Lock()
	if s.gated || s.closed || !s.mounted {
		s.mu.Unlock()
		return
	}
	s.view = ViewOpen
	s.unread = 0
	s.mu.Unlock()
	s.notify()
}

// Minimize hides the body but keeps the transcript; unread counting resumes.
func (s *Session) Minimize() {
	s.mu.Lock()
	if s.view != ViewOpen {
		s.mu.Unlock()
		return
	}
	s.view = ViewMinimized
	s.mu.Unlock()
	s.notify()
}

// Hide closes the widget. Background work continues; Open brings it back.
func (s *Session) Hide() {
	s.mu.Lock()
	if s.view == ViewClosed {
		s.mu.Unlock()
		return
	}
	s.view = ViewClosed
	s.mu.Unlock()
	s.notify()
}

// Send posts a customer message. The message is shown at once under a
// temporary id which is swapped for the server id on acknowledgment. When the
// request fails the optimistic message stays and the error is returned; there
// is no automatic retry.
//
// If profile resolution is still running, Send waits for it up to
// Options.ProfileWait; past that the message goes out under the guest name.
func (s *Session) Send(ctx context.Context, text string) (domain.Message, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if err := s.awaitProfile(ctx); err != nil {
		return domain.Message{}, err
	}

	ident, err := s.prepareSend(ctx)
	if err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	if err := s.sendableLocked(s.clock.Now()); err != nil {
		s.mu.Unlock()
		return domain.Message{}, err
	}
	now := s.clock.Now()
	msg := domain.Message{
		ID:             NewTempID(),
		ConversationID: ident.ID,
		Body:           body,
		SenderType:     domain.SenderCustomer,
		SenderName:     s.profile.DisplayName,
		CustomerEmail:  s.profile.Email,
		CreatedAt:      now,
	}
	s.transcript.Append(msg)
	s.started = true
	s.activity.touch(now)
	s.maybeStartPollerLocked()
	s.mu.Unlock()
	s.notify()

	saved, err := s.backend.SendMessage(ctx, domain.OutgoingMessage{
		ConversationID: ident.ID,
		Body:           body,
		SenderName:     msg.SenderName,
		CustomerEmail:  msg.CustomerEmail,
		IdempotencyKey: msg.ID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("conversation_id", ident.ID).Str("temp_id", msg.ID).Msg("send failed")
		return msg, err
	}
	if saved.ID == "" {
		return msg, errors.New("livechat: backend returned a message without id")
	}

	s.mu.Lock()
	s.transcript.ReplaceID(msg.ID, saved.ID)
	s.mu.Unlock()
	s.notify()

	msg.ID = saved.ID
	return msg, nil
}

// awaitProfile blocks until profile resolution finishes, ProfileWait
// passes, the session closes or ctx ends. Only the last is an error.
func (s *Session) awaitProfile(ctx context.Context) error {
	s.mu.Lock()
	pending := s.mounted && !s.gated && !s.closed && !s.resolved
	s.mu.Unlock()
	if !pending {
		return nil
	}

	t := time.NewTimer(s.opts.ProfileWait)
	defer t.Stop()
	select {
	case <-s.profileDone:
	case <-t.C:
		s.log.Debug().Dur("waited", s.opts.ProfileWait).Msg("profile unresolved; sending as guest")
	case <-s.root.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// prepareSend settles expired windows, checks that sending is allowed and
// makes sure an identity exists, creating a fresh one after a cooldown.
func (s *Session) prepareSend(ctx context.Context) (domain.ConversationIdentity, error) {
	s.durable.Lock()
	defer s.durable.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ConversationIdentity{}, ErrClosed
	}
	if !s.mounted {
		s.mu.Unlock()
		return domain.ConversationIdentity{}, ErrNotMounted
	}
	now := s.clock.Now()
	eff := s.settleLocked(now)
	err := s.sendableLocked(now)
	ident := s.identity
	s.mu.Unlock()

	s.applyDurable(ctx, eff)
	if !eff.isZero() {
		s.notify()
	}
	if err != nil {
		return domain.ConversationIdentity{}, err
	}
	if !ident.IsZero() {
		return ident, nil
	}

	ident = s.ids.GetOrCreate(ctx)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ConversationIdentity{}, ErrClosed
	}
	s.identity = ident
	s.startMonitorLocked()
	s.mu.Unlock()
	s.log.Info().Str("conversation_id", ident.ID).Msg("new conversation")
	return ident, nil
}

// sendableLocked reports why a send is refused, or nil.
func (s *Session) sendableLocked(now time.Time) error {
	switch {
	case s.closed:
		return ErrClosed
	case s.gated || s.view == ViewClosed:
		return ErrHidden
	case s.blockedLocked(now):
		return ErrSendBlocked
	}
	return nil
}

func (s *Session) blockedLocked(now time.Time) bool {
	if s.restriction != nil && s.restriction.Active(now) {
		return true
	}
	return s.cooldown != nil && s.cooldown.Active(now)
}

// settleLocked ends windows that have elapsed by now without waiting for
// their countdown tick.
func (s *Session) settleLocked(now time.Time) durableEffects {
	if s.restriction != nil && !s.restriction.Active(now) {
		s.clearRestrictionLocked()
	}
	if s.cooldown != nil && !s.cooldown.Active(now) {
		return s.expireCooldownLocked()
	}
	return durableEffects{}
}

// Snapshot returns the current view model.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.clock.Now())
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		View:           s.view,
		Phase:          s.phaseLocked(now),
		Transcript:     s.transcript.Messages(),
		Unread:         s.unread,
		ConversationID: s.identity.ID,
		Profile:        s.profile,
		Channel:        s.channel,
		At:             now,
	}
	if s.gated {
		snap.View = ViewClosed
	}
	switch p := snap.Phase.(type) {
	case PhaseRestricted:
		snap.Reason = p.Window.Reason
		if !p.Window.Until.IsZero() {
			snap.Countdown = domain.FormatCountdown(p.Window.Remaining(now))
		}
	case PhaseCooldown:
		snap.Countdown = domain.FormatCountdown(p.Window.Remaining(now))
	}
	return snap
}

// phaseLocked derives the send phase. A restriction outranks a cooldown.
func (s *Session) phaseLocked(now time.Time) Phase {
	switch {
	case s.restriction != nil && s.restriction.Active(now):
		return PhaseRestricted{Window: *s.restriction}
	case s.cooldown != nil && s.cooldown.Active(now):
		return PhaseCooldown{Window: *s.cooldown}
	case s.started:
		return PhaseActive{Polling: s.poller != nil}
	}
	return PhaseIdle{}
}

// Close stops every goroutine of the session and waits for them.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopAllLocked()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) notify() {
	if s.opts.OnChange == nil {
		return
	}
	s.opts.OnChange(s.Snapshot())
}

func (s *Session) applyDurable(ctx context.Context, eff durableEffects) {
	// Transitions must reach the store even when the triggering loop is
	// being cancelled.
	ctx = context.WithoutCancel(ctx)
	if eff.saveCooldown != nil {
		if err := saveCooldown(ctx, s.store, *eff.saveCooldown); err != nil {
			s.log.Warn().Err(err).Msg("cooldown write failed")
		}
	}
	if eff.clearCooldown {
		if err := clearCooldown(ctx, s.store); err != nil {
			s.log.Warn().Err(err).Msg("cooldown clear failed")
		}
	}
	if eff.discardIdentity {
		s.ids.Discard(ctx)
	}
}

func (e durableEffects) isZero() bool {
	return e.saveCooldown == nil && !e.clearCooldown && !e.discardIdentity
}
