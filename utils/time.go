// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// DateLayout is the canonical calendar-day format used for summary keys
const DateLayout = "2006-01-02"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// IsExpired checks if the given time is in the past (expired)
func IsExpired(t time.Time) bool {
	return UTCNow().After(t)
}

// IsExpiredPtr checks if the given time pointer is in the past (expired)
func IsExpiredPtr(t *time.Time) bool {
	if t == nil {
		return false
	}
	return IsExpired(*t)
}

// DayStart truncates a time to midnight UTC of its calendar day
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayEnd returns midnight UTC of the day after t (exclusive upper bound)
func DayEnd(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// DateString formats a time as its UTC calendar day
func DateString(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// SummaryCutoff returns the oldest summary date still inside the retention
// window, counted in calendar months so the advertised "26 months" holds
// across long and short months alike
func SummaryCutoff(now time.Time) time.Time {
	return now.UTC().AddDate(0, -SummaryRetentionMonths, 0)
}
