package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stamp layouts. Every persisted timestamp uses StampLayout: fixed width
// and zero padded, so lexicographic order equals chronological order and
// the store can compare stamps as plain strings.
const (
	StampLayout = "2006-01-02 15:04"
	DateLayout  = "2006-01-02"
)

// FormatStamp renders t as a sortable "YYYY-MM-DD HH:MM" stamp.
func FormatStamp(t time.Time) string {
	return t.Format(StampLayout)
}

// FormatDate renders t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseStamp parses a "YYYY-MM-DD HH:MM" stamp in the given location.
func ParseStamp(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(StampLayout, s, loc)
}

// ClockPart returns the HH:MM portion of a stamp for display.
func ClockPart(stamp string) string {
	if i := strings.IndexByte(stamp, ' '); i >= 0 {
		return stamp[i+1:]
	}
	return stamp
}

// ParseTimeOfDay validates user input like "8:00" or "08:00" and returns
// the normalized zero-padded "HH:MM" form required by the stamp contract.
func ParseTimeOfDay(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return "", errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", errors.New("invalid minute")
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// ParseTimesOfDay parses a comma- or space-separated list of times of day,
// normalizing and deduplicating them in input order.
func ParseTimesOfDay(s string) ([]string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, errors.New("no times given")
	}
	seen := make(map[string]struct{}, len(fields))
	times := make([]string, 0, len(fields))
	for _, f := range fields {
		t, err := ParseTimeOfDay(f)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		times = append(times, t)
	}
	return times, nil
}

// ValidateTZ checks that tz is a valid IANA location name.
func ValidateTZ(tz string) (*time.Location, error) {
	return time.LoadLocation(tz)
}
