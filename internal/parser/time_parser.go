package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
var dateTimeRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}) (\d{1,2}):(\d{2})$`)
var agoRegex = regexp.MustCompile(`^(\d+)\s*(minutes?|mins?|m|hours?|h)\s+ago$`)

// ParseTimestamp parses an event time given on the command line
// Supported formats:
// - "" (now)
// - RFC 3339 (e.g., "2024-05-14T07:30:00Z")
// - HH:MM today (e.g., "07:30")
// - dd/mm/yyyy HH:MM (e.g., "14/05/2024 07:30")
// - X minutes/hours ago (e.g., "15 minutes ago", "2 hours ago")
func ParseTimestamp(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	if m := clockRegex.FindStringSubmatch(input); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		if h > 23 || mins > 59 {
			return time.Time{}, fmt.Errorf("invalid time %q", input)
		}
		return time.Date(now.Year(), now.Month(), now.Day(), h, mins, 0, 0, now.Location()), nil
	}
	if m := dateTimeRegex.FindStringSubmatch(input); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		h, _ := strconv.Atoi(m[4])
		mins, _ := strconv.Atoi(m[5])
		t := time.Date(year, time.Month(month), day, h, mins, 0, 0, now.Location())
		// time.Date normalizes 31/02 into March; reject that.
		if t.Day() != day || int(t.Month()) != month || h > 23 || mins > 59 {
			return time.Time{}, fmt.Errorf("invalid date %q", input)
		}
		return t, nil
	}
	if d, err := parseAgo(input); err == nil {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format %q. Use: HH:MM, dd/mm/yyyy HH:MM, RFC 3339 or \"X minutes ago\"", input)
}

// parseAgo parses "X minutes ago" / "X hours ago"
func parseAgo(input string) (time.Duration, error) {
	m := agoRegex.FindStringSubmatch(strings.ToLower(input))
	if m == nil {
		return 0, fmt.Errorf("invalid relative time")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(m[2], "h") {
		return time.Duration(n) * time.Hour, nil
	}
	return time.Duration(n) * time.Minute, nil
}
