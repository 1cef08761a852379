package domain

import (
	"fmt"
	"strings"
)

// DateLayout is the ISO calendar date format used for reservation dates
const DateLayout = "2006-01-02"

// Reservation represents a booking of one or more fields for a time window on a date
type Reservation struct {
	ID     int64    `json:"id"`
	Date   string   `json:"date"`
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Fields []string `json:"fields"`
	Group  string   `json:"group"`
}

// NewReservation builds a normalized reservation from raw input.
// The ID stays zero until the store assigns one.
func NewReservation(date, start, end string, fields []string, group string) (*Reservation, error) {
	r := &Reservation{
		Date:   strings.TrimSpace(date),
		Fields: NormalizeFields(fields),
		Group:  strings.TrimSpace(group),
	}

	startMin, err := ToMinutes(start)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid start time %q", start))
	}
	endMin, err := ToMinutes(end)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid end time %q", end))
	}
	if startMin >= endMin {
		return nil, NewValidationError("start time must be before end time")
	}
	if len(r.Fields) == 0 {
		return nil, NewValidationError("at least one field is required")
	}
	if _, err := ParseDate(r.Date); err != nil {
		return nil, err
	}

	r.Start = FormatMinutes(startMin)
	r.End = FormatMinutes(endMin)
	return r, nil
}

// Clone returns a deep copy so snapshots never share the fields slice
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.Fields = append([]string(nil), r.Fields...)
	return &c
}

// NormalizeFields trims identifiers and drops blanks and duplicates, keeping first-seen order
func NormalizeFields(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
