// Package livechat – options
package livechat

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default timings of the engine.
const (
	DefaultPollInterval        = 3 * time.Second
	DefaultIdleAfter           = 5 * time.Minute
	DefaultCooldown            = 5 * time.Minute
	DefaultRestrictionInterval = 10 * time.Second
	DefaultCountdownInterval   = time.Second
	DefaultProfileWait         = 2 * time.Second
)

// DefaultAdminPrefixes are the route prefixes on which the widget is hidden.
var DefaultAdminPrefixes = []string{"/admin"}

// Clock supplies the current time. Window arithmetic and the idle check go
// through it; ticker periods do not.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a Session. Zero fields take their defaults.
type Options struct {
	PollInterval        time.Duration
	IdleAfter           time.Duration
	Cooldown            time.Duration
	RestrictionInterval time.Duration
	CountdownInterval   time.Duration
	// ProfileWait bounds how long Send waits for a profile resolution that
	// is still running before it sends as the guest.
	ProfileWait time.Duration

	// Route is the page the tab is on. The widget is hidden when it starts
	// with one of AdminPrefixes.
	Route         string
	AdminPrefixes []string

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	Clock  Clock

	// OnChange receives a snapshot after every state change and every
	// countdown second. It may be called from several goroutines and must
	// not call back into the Session synchronously.
	OnChange func(Snapshot)
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.IdleAfter <= 0 {
		o.IdleAfter = DefaultIdleAfter
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.RestrictionInterval <= 0 {
		o.RestrictionInterval = DefaultRestrictionInterval
	}
	if o.CountdownInterval <= 0 {
		o.CountdownInterval = DefaultCountdownInterval
	}
	if o.ProfileWait <= 0 {
		o.ProfileWait = DefaultProfileWait
	}
	if o.AdminPrefixes == nil {
		o.AdminPrefixes = DefaultAdminPrefixes
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Logger == nil {
		l := log.Logger
		o.Logger = &l
	}
	return o
}

// adminRoute reports whether route falls under one of the prefixes. A prefix
// matches whole path segments only: "/admin" covers "/admin" and
// "/admin/users" but not "/administrator".
func adminRoute(route string, prefixes []string) bool {
	if route == "" {
		return false
	}
	for _, p := range prefixes {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		if route == p || strings.HasPrefix(route, p+"/") {
			return true
		}
	}
	return false
}
