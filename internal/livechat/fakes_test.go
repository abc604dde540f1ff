package livechat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-livechat/internal/domain"
)

var errDown = errors.New("backend down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBackend struct {
	mu sync.Mutex

	lookup    domain.CustomerLookup
	lookupErr error
	status    domain.ChannelStatus
	statusErr error

	batches    [][]domain.Message
	fetchErr   error
	fetches    int
	fetchAfter []time.Time

	sent    []domain.OutgoingMessage
	sendErr error
	seq     int

	restriction    domain.RestrictionStatus
	restrictionErr error
	checks         int
	checkedIDs     []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{status: domain.ChannelOnline}
}

func (b *fakeBackend) ResolveCustomer(context.Context) (domain.CustomerLookup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup, b.lookupErr
}

func (b *fakeBackend) ChannelStatus(context.Context) (domain.ChannelStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, b.statusErr
}

func (b *fakeBackend) FetchMessages(_ context.Context, _ string, after time.Time) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	b.fetchAfter = append(b.fetchAfter, after)
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	if len(b.batches) == 0 {
		return nil, nil
	}
	next := b.batches[0]
	b.batches = b.batches[1:]
	return next, nil
}

func (b *fakeBackend) SendMessage(_ context.Context, msg domain.OutgoingMessage) (domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	if b.sendErr != nil {
		return domain.Message{}, b.sendErr
	}
	b.seq++
	return domain.Message{
		ID:             fmt.Sprintf("srv%d", b.seq),
		ConversationID: msg.ConversationID,
		Body:           msg.Body,
		SenderType:     domain.SenderCustomer,
		SenderName:     msg.SenderName,
	}, nil
}

func (b *fakeBackend) CheckRestriction(_ context.Context, id string) (domain.RestrictionStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks++
	b.checkedIDs = append(b.checkedIDs, id)
	return b.restriction, b.restrictionErr
}

func (b *fakeBackend) queue(batch ...domain.Message) {
	b.mu.Lock()
	b.batches = append(b.batches, batch)
	b.mu.Unlock()
}

func (b *fakeBackend) setRestriction(st domain.RestrictionStatus, err error) {
	b.mu.Lock()
	b.restriction, b.restrictionErr = st, err
	b.mu.Unlock()
}

func (b *fakeBackend) fetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

func (b *fakeBackend) checkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.checks
}

func (b *fakeBackend) sentMessages() []domain.OutgoingMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.OutgoingMessage(nil), b.sent...)
}

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, errDown }
func (failingStore) Put(context.Context, string, string) error         { return errDown }
func (failingStore) Delete(context.Context, string) error              { return errDown }

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func fastOptions(clock Clock) Options {
	return Options{
		PollInterval:        10 * time.Millisecond,
		RestrictionInterval: 10 * time.Millisecond,
		CountdownInterval:   5 * time.Millisecond,
		Clock:               clock,
		Logger:              nopLogger(),
	}
}

func adminMsg(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, Body: "reply " + id, SenderType: domain.SenderAdmin, SenderName: "Ops", CreatedAt: at}
}

func systemMsg(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, Body: "closed", SenderType: domain.SenderSystem, CreatedAt: at}
}
