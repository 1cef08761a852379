package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ToMinutes converts an HH:MM time of day to minutes since midnight
func ToMinutes(timeOfDay string) (int, error) {
	parts := strings.Split(strings.TrimSpace(timeOfDay), ":")
	if len(parts) != 2 || !isDigits(parts[0]) || !isDigits(parts[1]) {
		return 0, ErrInvalidFormat
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ErrInvalidFormat
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, ErrInvalidFormat
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, ErrInvalidFormat
	}
	return hours*60 + minutes, nil
}

// isDigits rejects the signs and spaces strconv.Atoi would accept
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatMinutes renders minutes since midnight as zero-padded HH:MM
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// IntervalsOverlap reports whether [aStart,aEnd) and [bStart,bEnd) share an instant.
// Back-to-back intervals and zero-length intervals never overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Conflicts reports whether candidate overlaps in time and shares a field with any existing reservation
func Conflicts(candidate *Reservation, existing []*Reservation) bool {
	return FindConflict(candidate, existing) != nil
}

// FindConflict returns the first reservation in existing that conflicts with candidate, or nil.
// Reservations whose times do not parse are skipped.
func FindConflict(candidate *Reservation, existing []*Reservation) *Reservation {
	cStart, err := ToMinutes(candidate.Start)
	if err != nil {
		return nil
	}
	cEnd, err := ToMinutes(candidate.End)
	if err != nil {
		return nil
	}

	for _, e := range existing {
		eStart, err := ToMinutes(e.Start)
		if err != nil {
			continue
		}
		eEnd, err := ToMinutes(e.End)
		if err != nil {
			continue
		}
		if !IntervalsOverlap(cStart, cEnd, eStart, eEnd) {
			continue
		}
		if sharesField(candidate.Fields, e.Fields) {
			return e
		}
	}
	return nil
}

func sharesField(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, f := range a {
		set[f] = struct{}{}
	}
	for _, f := range b {
		if _, ok := set[f]; ok {
			return true
		}
	}
	return false
}
