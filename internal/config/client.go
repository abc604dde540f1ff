package config

import (
	"net/url"
	"strings"
	"time"
)

// ClientConfig configures the terminal chat client. One process plays one
// browser tab; TabID scopes its durable state.
type ClientConfig struct {
	BackendURL  string        // LIVECHAT_BACKEND_URL, including the API base path
	StateDB     string        // LIVECHAT_STATE_DB, SQLite file of tab state
	TabID       string        // LIVECHAT_TAB_ID
	Token       string        // LIVECHAT_TOKEN, optional customer bearer token
	Route       string        // LIVECHAT_ROUTE, page the tab pretends to be on
	HTTPTimeout time.Duration // LIVECHAT_HTTP_TIMEOUT

	PollInterval        time.Duration // LIVECHAT_POLL_INTERVAL
	IdleAfter           time.Duration // LIVECHAT_IDLE_AFTER
	Cooldown            time.Duration // LIVECHAT_COOLDOWN
	RestrictionInterval time.Duration // LIVECHAT_RESTRICTION_INTERVAL
	AdminPrefixes       []string      // LIVECHAT_ADMIN_PREFIXES (CSV)

	LogLevel  string // LOG_LEVEL
	LogPretty bool   // LOG_PRETTY
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (ClientConfig, error) {
	e := &envReader{}
	cfg := ClientConfig{
		BackendURL:  strings.TrimRight(e.str("LIVECHAT_BACKEND_URL", "http://localhost:8080/api/v1"), "/"),
		StateDB:     e.str("LIVECHAT_STATE_DB", "livechat-state.db"),
		TabID:       e.str("LIVECHAT_TAB_ID", "default"),
		Token:       e.str("LIVECHAT_TOKEN", ""),
		Route:       e.str("LIVECHAT_ROUTE", "/"),
		HTTPTimeout: e.dur("LIVECHAT_HTTP_TIMEOUT", 10*time.Second),

		PollInterval:        e.dur("LIVECHAT_POLL_INTERVAL", 3*time.Second),
		IdleAfter:           e.dur("LIVECHAT_IDLE_AFTER", 5*time.Minute),
		Cooldown:            e.dur("LIVECHAT_COOLDOWN", 5*time.Minute),
		RestrictionInterval: e.dur("LIVECHAT_RESTRICTION_INTERVAL", 10*time.Second),
		AdminPrefixes:       e.csv("LIVECHAT_ADMIN_PREFIXES", "/admin"),

		LogLevel:  normalizeLevel(e.lower("LOG_LEVEL", "info")),
		LogPretty: e.bool("LOG_PRETTY", true),
	}
	if err := e.err(); err != nil {
		return cfg, err
	}

	var p problems
	u, err := url.Parse(cfg.BackendURL)
	p.check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
		"LIVECHAT_BACKEND_URL must be an absolute http(s) URL")
	p.check(validLevel(cfg.LogLevel), "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	p.check(cfg.HTTPTimeout > 0 && cfg.PollInterval > 0 && cfg.IdleAfter > 0 && cfg.Cooldown > 0 && cfg.RestrictionInterval > 0,
		"client intervals must be positive durations")
	return cfg, p.err()
}
