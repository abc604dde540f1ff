// Package livechat – customer profile
//
// Profile resolution never blocks chat: every failure yields the guest.
package livechat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-livechat/internal/domain"
)

// ResolveProfile asks the backend who the visitor is. Any failure yields the
// guest profile. operator is true for back-office accounts, for which the
// widget must not be shown.
func ResolveProfile(ctx context.Context, backend Backend, logger zerolog.Logger) (profile domain.CustomerProfile, operator bool) {
	lookup, err := backend.ResolveCustomer(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("customer lookup failed; continuing as guest")
		return domain.GuestProfile(), false
	}
	if lookup.Operator {
		return domain.GuestProfile(), true
	}
	if !lookup.Authenticated {
		return domain.GuestProfile(), false
	}

	email := strings.TrimSpace(lookup.Email)
	if !validEmail(email) {
		email = ""
	}
	name := strings.TrimSpace(lookup.Name)
	if name == "" {
		name = nameFromEmail(email)
	}
	if name == "" {
		name = domain.GuestName
	}
	return domain.CustomerProfile{DisplayName: name, Email: email}, false
}

func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && strings.Count(s, "@") == 1
}

// nameFromEmail turns "jane.doe+shop@example.com" into "Jane Doe".
func nameFromEmail(email string) string {
	local, _, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	local, _, _ = strings.Cut(local, "+")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
