package trading

import "time"

// KST Korea Standard Time; KRX does not observe daylight saving.
var KST = time.FixedZone("KST", 9*3600)

// TimeRange an intraday session window, both ends inclusive.
type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// KRX regular session 09:00-15:30
var stockTradingHours = []TimeRange{
	{9, 0, 15, 30},
}

// pre-open single-price auction 08:30-09:00
var preOpenHours = []TimeRange{
	{8, 30, 8, 59},
}

type SessionState string

const (
	SessionPreOpen SessionState = "pre_open"
	SessionOpen    SessionState = "open"
	SessionClosed  SessionState = "closed"
)

// IsBusinessDay reports whether t falls on a weekday in KST.
func IsBusinessDay(t time.Time) bool {
	switch t.In(KST).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// IsMarketOpen reports whether the regular session is running now.
func IsMarketOpen() bool {
	return IsMarketOpenAt(time.Now())
}

// IsMarketOpenAt reports whether the regular session is running at t.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(KST)
	if !IsBusinessDay(t) {
		return false
	}
	return isInTimeRanges(t, stockTradingHours)
}

// SessionAt classifies t into pre-open, open or closed.
func SessionAt(t time.Time) SessionState {
	t = t.In(KST)
	switch {
	case !IsBusinessDay(t):
		return SessionClosed
	case isInTimeRanges(t, stockTradingHours):
		return SessionOpen
	case isInTimeRanges(t, preOpenHours):
		return SessionPreOpen
	}
	return SessionClosed
}

// isInTimeRanges checks minute-of-day membership in any range.
func isInTimeRanges(t time.Time, ranges []TimeRange) bool {
	currentMinutes := t.Hour()*60 + t.Minute()

	for _, r := range ranges {
		startMinutes := r.StartHour*60 + r.StartMinute
		endMinutes := r.EndHour*60 + r.EndMinute

		if startMinutes <= endMinutes {
			if currentMinutes >= startMinutes && currentMinutes <= endMinutes {
				return true
			}
		} else if currentMinutes >= startMinutes || currentMinutes <= endMinutes {
			return true
		}
	}
	return false
}

// NextOpen returns the start of the next regular session strictly after t, or t itself
// when the session is already running.
func NextOpen(t time.Time) time.Time {
	t = t.In(KST)
	if IsMarketOpenAt(t) {
		return t
	}
	open := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), stockTradingHours[0].StartHour, stockTradingHours[0].StartMinute, 0, 0, KST)
	}
	d := t
	if !t.Before(open(t)) {
		d = t.AddDate(0, 0, 1)
	}
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return open(d)
}

// BusinessDays returns the n most recent business days at or before end, oldest first,
// each at midnight KST.
func BusinessDays(end time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	e := end.In(KST)
	d := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, KST)

	out := make([]time.Time, n)
	for i := n - 1; i >= 0; {
		if IsBusinessDay(d) {
			out[i] = d
			i--
		}
		d = d.AddDate(0, 0, -1)
	}
	return out
}
