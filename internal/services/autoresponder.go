package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-livechat/internal/search"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultAutoReplyThreshold is the minimum FAQ score worth quoting.
	DefaultAutoReplyThreshold = 0.25
	// DefaultAutoReplySender is the display name of automatic answers.
	DefaultAutoReplySender = "Support"
	// DefaultAutoReplyFallback acknowledges messages no FAQ entry answers.
	DefaultAutoReplyFallback = "Thanks for your message! An agent will be with you shortly."
)

// AutoResponder answers customer messages from an FAQ index. Answers are
// stored as admin messages, so they reach the widget through normal polling.
type AutoResponder struct {
	Index     search.Index
	Threshold float64
	// SenderName defaults to DefaultAutoReplySender.
	SenderName string
	// Fallback is used when nothing scores above Threshold.
	Fallback string
	// MaxReplyRunes clips long FAQ answers; zero disables clipping.
	MaxReplyRunes int
}

// NewAutoResponder returns a responder over idx with default settings. idx
// may be nil, in which case every message gets the fallback.
func NewAutoResponder(idx search.Index) *AutoResponder {
	return &AutoResponder{
		Index:      idx,
		Threshold:  DefaultAutoReplyThreshold,
		SenderName: DefaultAutoReplySender,
		Fallback:   DefaultAutoReplyFallback,
	}
}

// Compose returns the reply for a customer message.
func (a *AutoResponder) Compose(ctx context.Context, body string) string {
	_, span := tracer().Start(ctx, "AutoResponder.Compose",
		trace.WithAttributes(attribute.Int("query.len", len(body))),
	)
	defer span.End()

	fallback := a.Fallback
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultAutoReplyFallback
	}
	if a.Index == nil || a.Index.Len() == 0 {
		span.SetAttributes(attribute.Bool("matched", false))
		return fallback
	}

	top := a.Index.TopK(body, 1)
	if len(top) == 0 || top[0].Score < a.Threshold {
		span.SetAttributes(attribute.Bool("matched", false))
		return fallback
	}
	span.SetAttributes(
		attribute.Bool("matched", true),
		attribute.Float64("score", top[0].Score),
	)

	answer := strings.TrimSpace(top[0].Entry.Answer)
	if a.MaxReplyRunes > 0 && utf8.RuneCountInString(answer) > a.MaxReplyRunes {
		runes := []rune(answer)
		answer = strings.TrimSpace(string(runes[:a.MaxReplyRunes])) + "…"
	}
	return answer
}

func (a *AutoResponder) senderName() string {
	if n := strings.TrimSpace(a.SenderName); n != "" {
		return n
	}
	return DefaultAutoReplySender
}
