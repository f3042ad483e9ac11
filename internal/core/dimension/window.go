package dimension

import (
	"fmt"
	"strconv"
	"time"
)

// ParseWindow parses a rolling window length.
// Supports Go duration syntax (e.g. "12h") plus "Xd" for days.
func ParseWindow(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("window must not be empty")
	}

	if len(s) > 1 && s[len(s)-1] == 'd' {
		days, err := strconv.Atoi(s[:len(s)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid window %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("window must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive, got %q", s)
	}
	return d, nil
}

const dateLayout = "2006-01-02"

// parseBound parses an RFC3339 timestamp or a bare date. dateOnly is true for
// the latter so an end bound can cover the whole day.
func parseBound(s string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err = time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected RFC3339 or %s, got %q", dateLayout, s)
	}
	return t, true, nil
}
