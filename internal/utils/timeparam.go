package utils

import (
	"strconv"
	"time"
)

// ParseTimeParam parses a timestamp query parameter. An empty string yields
// the zero time. RFC 3339 (with or without fractional seconds) is accepted,
// as are integer Unix milliseconds. The result is in UTC.
func ParseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, &time.ParseError{Layout: time.RFC3339Nano, Value: s, Message: ": not RFC 3339 or unix milliseconds"}
	}
	return time.UnixMilli(ms).UTC(), nil
}
