package domain

import (
	"strings"
	"time"
)

// DaysPerWeek is the length of the window returned by a week listing
const DaysPerWeek = 7

// ParseDate parses an ISO date and anchors it at midday UTC
func ParseDate(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, ErrInvalidDate
	}
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC), nil
}

// WeekDates returns startDate and the six calendar days after it.
// Arithmetic is done on the calendar day at 12:00 so a DST shift can never move a date.
func WeekDates(startDate string) ([]string, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(DateLayout))
	}
	return dates, nil
}
