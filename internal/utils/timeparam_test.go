package utils

import (
	"testing"
	"time"
)

func TestParseTimeParam(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 30, 15, 123456789, time.UTC)

	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"2025-03-01T12:30:15.123456789Z", want, false},
		{"2025-03-01T13:30:15.123456789+01:00", want, false},
		{"2025-03-01T12:30:15Z", want.Truncate(time.Second), false},
		{"1740832215123", time.UnixMilli(1740832215123).UTC(), false},
		{"yesterday", time.Time{}, true},
		{"2025-03-01", time.Time{}, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeParam(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeParam(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimeParam(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) || got.Location() != time.UTC {
			t.Fatalf("ParseTimeParam(%q) = %v; want %v (UTC)", tc.in, got, tc.want)
		}
	}
}
