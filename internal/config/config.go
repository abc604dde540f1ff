// Package config provides application configuration loaded from environment
// variables with defaults and validation. Config covers the support server
// (timeouts, logging, persistence, rate limiting, auth, auto-reply and
// observability); ClientConfig covers the terminal chat client.
package config

import (
	"time"

	"github.com/tbourn/go-livechat/internal/domain"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "supportd")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AutoReplyConfig controls the FAQ-backed acknowledgment posted after each
// customer message.
type AutoReplyConfig struct {
	Enabled   bool    // AUTO_REPLY_ENABLED
	FAQPath   string  // FAQ_PATH, markdown file of FAQ paragraphs
	Threshold float64 // AUTO_REPLY_THRESHOLD, retrieval confidence in [0,1]
	Sender    string  // AUTO_REPLY_SENDER, display name of the reply
}

// Config holds all configuration values for the support server.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Support
	DBPath        string               // SQLite path
	ChannelStatus domain.ChannelStatus // initial status: online|away|offline
	MaxBodyRunes  int                  // message length cap (0 disables)
	JWTSecret     string               // HS256 key; empty disables bearer auth
	AutoReply     AutoReplyConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the server configuration from the environment. Malformed values
// and failed checks are all reported together in one joined error.
func Load() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           e.lower("GIN_MODE", "release"),

		LogLevel:       normalizeLevel(e.lower("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath:        e.str("DB_PATH", "support.db"),
		ChannelStatus: domain.ChannelStatus(e.lower("CHANNEL_STATUS", string(domain.ChannelOnline))),
		MaxBodyRunes:  e.int("MAX_BODY_RUNES", 4000),
		JWTSecret:     e.str("JWT_SECRET", ""),
		AutoReply: AutoReplyConfig{
			Enabled:   e.bool("AUTO_REPLY_ENABLED", false),
			FAQPath:   e.str("FAQ_PATH", "data/faq.md"),
			Threshold: e.float("AUTO_REPLY_THRESHOLD", 0.25),
			Sender:    e.str("AUTO_REPLY_SENDER", "Support"),
		},

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.csv("CORS_ALLOWED_ORIGINS", "")},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "supportd"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	if err := e.err(); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	var p problems
	p.check(validLevel(cfg.LogLevel), "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	p.check(cfg.Port != "", "PORT must not be empty")
	p.check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	p.check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	p.check(cfg.DBPath != "", "DB_PATH must not be empty")
	p.check(cfg.ChannelStatus.Valid(), "CHANNEL_STATUS must be one of: online, away, offline")
	p.check(cfg.MaxBodyRunes >= 0, "MAX_BODY_RUNES must be >= 0")
	p.check(!cfg.AutoReply.Enabled || cfg.AutoReply.FAQPath != "", "FAQ_PATH must not be empty when AUTO_REPLY_ENABLED")
	p.check(cfg.AutoReply.Threshold >= 0 && cfg.AutoReply.Threshold <= 1, "AUTO_REPLY_THRESHOLD must be between 0 and 1")
	p.check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	p.check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	p.check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	p.check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	p.check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return p.err()
}
