// Package services – SupportService
//
// This file implements SupportService, the server side of the live-chat
// boundary. Customers post messages and poll for replies; operators reply,
// close conversations and impose temporary restrictions. A conversation is
// implicit: it exists once a message carries its id, and it is closed once it
// carries a system message.
//
// Customer sends are idempotent per (conversation, key). The key is the
// client's temporary message id, so a retried POST returns the message stored
// by the first attempt.
//
// Observability: all public methods are OpenTelemetry-instrumented and the
// stored messages, closures and restriction changes feed Prometheus counters.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxConversationIDLen mirrors the width of the conversation_id columns.
	maxConversationIDLen = 64

	defaultIdempotencyTTL = 24 * time.Hour
	defaultClosureBody    = "This conversation has been closed."
)

// CustomerMessage is a customer send as received from the widget.
type CustomerMessage struct {
	ConversationID string
	Body           string
	SenderName     string
	CustomerEmail  string
	IdempotencyKey string
}

// SupportService coordinates message persistence, closures, restrictions and
// the global channel status.
type SupportService struct {
	DB *gorm.DB

	// MaxBodyRunes caps message bodies; zero disables the check.
	MaxBodyRunes int
	// IdempotencyTTL bounds how long a customer send can be replayed.
	IdempotencyTTL time.Duration
	// AutoReply, when set, answers every new customer message.
	AutoReply *AutoResponder
	// Now is the clock used for restriction checks; nil means time.Now.
	Now func() time.Time

	mu     sync.RWMutex
	status domain.ChannelStatus
}

// NewSupportService returns a service over db with the given initial channel
// status. An invalid status defaults to online.
func NewSupportService(db *gorm.DB, status domain.ChannelStatus) *SupportService {
	if !status.Valid() {
		status = domain.ChannelOnline
	}
	return &SupportService{DB: db, IdempotencyTTL: defaultIdempotencyTTL, status: status}
}

func (s *SupportService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func tracer() trace.Tracer { return otel.Tracer("services/SupportService") }

// ChannelStatus returns the current availability of the support channel.
func (s *SupportService) ChannelStatus() domain.ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == "" {
		return domain.ChannelOnline
	}
	return s.status
}

// SetChannelStatus changes the channel availability.
func (s *SupportService) SetChannelStatus(status domain.ChannelStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	return nil
}

// ListMessages returns a conversation's messages created strictly after after
// (all of them when after is zero), oldest first.
func (s *SupportService) ListMessages(ctx context.Context, conversationID string, after time.Time) ([]domain.Message, error) {
	ctx, span := tracer().Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Bool("incremental", !after.IsZero()),
		),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return nil, err
	}
	// No row cap: the widget's cursor only advances on operator messages, so
	// a truncated window over customer rows would never move past them.
	return repo.ListMessagesAfter(ctx, s.DB, conversationID, after, 0)
}

// PostCustomerMessage stores a customer message. replayed is true when the
// idempotency key matched an earlier send, in which case the original
// message is returned and nothing is written.
func (s *SupportService) PostCustomerMessage(ctx context.Context, in CustomerMessage) (msg *domain.Message, replayed bool, err error) {
	ctx, span := tracer().Start(ctx, "PostCustomerMessage",
		trace.WithAttributes(
			attribute.String("conversation.id", in.ConversationID),
			attribute.Bool("idempotent", in.IdempotencyKey != ""),
		),
	)
	defer span.End()

	if err := validConversation(in.ConversationID); err != nil {
		return nil, false, err
	}
	body, err := s.normalizeBody(in.Body)
	if err != nil {
		return nil, false, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	if key != "" {
		if m, err := s.replay(ctx, in.ConversationID, key); err == nil {
			return m, true, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, false, err
		}
	}

	if err := s.ensureOpen(ctx, in.ConversationID); err != nil {
		return nil, false, err
	}
	status, err := s.CheckRestriction(ctx, in.ConversationID)
	if err != nil {
		return nil, false, err
	}
	if status.Restricted {
		return nil, false, ErrRestricted
	}

	name := strings.TrimSpace(in.SenderName)
	if name == "" {
		name = domain.GuestName
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, repo.NewMessage{
			ConversationID: in.ConversationID,
			SenderType:     domain.SenderCustomer,
			SenderName:     name,
			Body:           body,
			CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		})
		if err != nil {
			return err
		}
		if key != "" {
			if err := repo.PurgeExpiredIdempotency(ctx, tx, in.ConversationID, key, s.now()); err != nil {
				return err
			}
			if _, err := repo.CreateIdempotency(ctx, tx, in.ConversationID, key, m.ID, http.StatusCreated, s.idempotencyTTL()); err != nil {
				return err
			}
		}
		msg = m
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent attempt with the same key won the insert.
		m, rerr := s.replay(ctx, in.ConversationID, key)
		if rerr != nil {
			return nil, false, rerr
		}
		return m, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	messagesPosted.WithLabelValues(string(domain.SenderCustomer)).Inc()

	if s.AutoReply != nil {
		s.autoReply(ctx, msg)
	}
	return msg, false, nil
}

func (s *SupportService) replay(ctx context.Context, conversationID, key string) (*domain.Message, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, conversationID, key, s.now())
	if err != nil {
		return nil, err
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		return nil, err
	}
	idempotentReplays.Inc()
	return m, nil
}

// autoReply stores the responder's answer right after the customer message.
// Failures are logged; the customer send already succeeded.
func (s *SupportService) autoReply(ctx context.Context, customer *domain.Message) {
	text := s.AutoReply.Compose(ctx, customer.Body)
	_, err := repo.CreateMessage(ctx, s.DB, repo.NewMessage{
		ConversationID: customer.ConversationID,
		SenderType:     domain.SenderAdmin,
		SenderName:     s.AutoReply.senderName(),
		Body:           text,
		CreatedAt:      customer.CreatedAt.Add(time.Millisecond),
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("conversation_id", customer.ConversationID).Msg("auto-reply failed")
		return
	}
	messagesPosted.WithLabelValues(string(domain.SenderAdmin)).Inc()
}

// PostOperatorReply stores an operator message in an existing, open conversation.
func (s *SupportService) PostOperatorReply(ctx context.Context, conversationID, operatorName, body string) (*domain.Message, error) {
	ctx, span := tracer().Start(ctx, "PostOperatorReply",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return nil, err
	}
	body, err := s.normalizeBody(body)
	if err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, conversationID); err != nil {
		return nil, err
	}

	m, err := repo.CreateMessage(ctx, s.DB, repo.NewMessage{
		ConversationID: conversationID,
		SenderType:     domain.SenderAdmin,
		SenderName:     strings.TrimSpace(operatorName),
		Body:           body,
	})
	if err != nil {
		return nil, err
	}
	messagesPosted.WithLabelValues(string(domain.SenderAdmin)).Inc()
	return m, nil
}

// CloseConversation appends the system message that tells the customer's
// widget the conversation is over. A blank note uses a default text.
func (s *SupportService) CloseConversation(ctx context.Context, conversationID, note string) (*domain.Message, error) {
	ctx, span := tracer().Start(ctx, "CloseConversation",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, conversationID); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(note)
	if body == "" {
		body = defaultClosureBody
	}
	m, err := repo.CreateMessage(ctx, s.DB, repo.NewMessage{
		ConversationID: conversationID,
		SenderType:     domain.SenderSystem,
		Body:           body,
	})
	if err != nil {
		return nil, err
	}
	messagesPosted.WithLabelValues(string(domain.SenderSystem)).Inc()
	conversationsClosed.Inc()
	return m, nil
}

// Restrict suspends customer sends in a conversation until until, or
// indefinitely when until is nil. An existing restriction is replaced.
func (s *SupportService) Restrict(ctx context.Context, conversationID string, until *time.Time, reason string) (*domain.Restriction, error) {
	ctx, span := tracer().Start(ctx, "Restrict",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Bool("open_ended", until == nil),
		),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return nil, err
	}
	if until != nil && !until.After(s.now()) {
		return nil, ErrInvalidRestriction
	}
	r, err := repo.UpsertRestriction(ctx, s.DB, conversationID, until, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	restrictionChanges.WithLabelValues("restrict").Inc()
	return r, nil
}

// Lift removes a conversation's restriction.
func (s *SupportService) Lift(ctx context.Context, conversationID string) error {
	ctx, span := tracer().Start(ctx, "Lift",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return err
	}
	if err := repo.DeleteRestriction(ctx, s.DB, conversationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotRestricted
		}
		return err
	}
	restrictionChanges.WithLabelValues("lift").Inc()
	return nil
}

// CheckRestriction reports whether a conversation is currently restricted.
// An expired row reads as not restricted.
func (s *SupportService) CheckRestriction(ctx context.Context, conversationID string) (domain.RestrictionStatus, error) {
	ctx, span := tracer().Start(ctx, "CheckRestriction",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return domain.RestrictionStatus{}, err
	}
	r, err := repo.GetRestriction(ctx, s.DB, conversationID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.RestrictionStatus{}, nil
	}
	if err != nil {
		return domain.RestrictionStatus{}, err
	}
	if !r.ActiveAt(s.now()) {
		return domain.RestrictionStatus{}, nil
	}
	return domain.RestrictionStatus{Restricted: true, Until: r.Until, Reason: r.Reason}, nil
}

// Transcript returns a page of a conversation's full history for operators,
// with the total message count.
func (s *SupportService) Transcript(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := tracer().Start(ctx, "Transcript",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if err := validConversation(conversationID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, ErrConversationNotFound
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, (page-1)*pageSize, pageSize)
	return items, total, err
}

func (s *SupportService) normalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return "", ErrTooLong
	}
	return body, nil
}

func (s *SupportService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

func (s *SupportService) ensureExists(ctx context.Context, conversationID string) error {
	n, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *SupportService) ensureOpen(ctx context.Context, conversationID string) error {
	closed, err := repo.HasSystemMessage(ctx, s.DB, conversationID)
	if err != nil {
		return err
	}
	if closed {
		return ErrConversationClosed
	}
	return nil
}

func validConversation(id string) error {
	if strings.TrimSpace(id) == "" || utf8.RuneCountInString(id) > maxConversationIDLen {
		return ErrInvalidConversation
	}
	return nil
}
