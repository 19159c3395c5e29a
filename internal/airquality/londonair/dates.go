package londonair

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the DDMonYYYY form used in path segments, e.g. 01Jan2019.
	DateLayout = "02Jan2006"

	// TimestampLayout is the form of every timestamp in upstream payloads.
	TimestampLayout = "2006-01-02 15:04:05"
)

// FormatDate renders a calendar date as DDMonYYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DDMonYYYY date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseTimestamp parses an upstream timestamp. The upstream carries no zone,
// so the result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ParseOptionalTimestamp returns nil for an empty value.
func ParseOptionalTimestamp(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
