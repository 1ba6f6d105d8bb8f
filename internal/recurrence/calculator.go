package recurrence

import "time"

// The series of a rule is fully determined by (anchor, frequency, interval):
// occurrence k falls k*interval frequency-units after the anchor. Monthly and
// yearly steps clamp to the last valid day of the target month, and the clamp
// is always computed from the anchor's day-of-month, never from a previously
// clamped occurrence, so a Jan 31 anchor yields Feb 28/29 and then Mar 31.

// Occurrence returns the k-th occurrence of the series, k >= 0. Occurrence 0
// is the anchor itself.
func Occurrence(anchor time.Time, freq Frequency, interval, k int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch freq {
	case Daily:
		return anchor.AddDate(0, 0, k*interval)
	case Weekly:
		return anchor.AddDate(0, 0, 7*k*interval)
	case Monthly:
		return monthOccurrence(anchor, k*interval)
	case Yearly:
		return yearOccurrence(anchor, k*interval)
	}
	return anchor
}

// Next returns the smallest occurrence of the series strictly after the
// given instant. Resolution is closed-form: a direct index estimate plus a
// clamp correction bounded to a couple of steps, never a scan proportional
// to the elapsed time.
func Next(anchor time.Time, freq Frequency, interval int, after time.Time) time.Time {
	return Occurrence(anchor, freq, interval, IndexAfter(anchor, freq, interval, after))
}

// IndexAfter returns the smallest k such that Occurrence(k) is strictly
// after the given instant. Returns 0 when the instant precedes the anchor.
func IndexAfter(anchor time.Time, freq Frequency, interval int, after time.Time) int {
	if interval < 1 {
		interval = 1
	}
	if after.Before(anchor) {
		return 0
	}

	var k int
	switch freq {
	case Daily:
		step := time.Duration(interval) * 24 * time.Hour
		k = int(after.Sub(anchor)/step) + 1
	case Weekly:
		step := time.Duration(interval) * 7 * 24 * time.Hour
		k = int(after.Sub(anchor)/step) + 1
	case Monthly:
		months := (after.Year()-anchor.Year())*12 + int(after.Month()) - int(anchor.Month())
		k = months/interval - 1
	case Yearly:
		k = (after.Year()-anchor.Year())/interval - 1
	}
	if k < 0 {
		k = 0
	}

	// Month-end clamping makes the monthly/yearly estimate inexact by at
	// most two steps; settle on the boundary with a short walk.
	for k > 0 && Occurrence(anchor, freq, interval, k-1).After(after) {
		k--
	}
	for !Occurrence(anchor, freq, interval, k).After(after) {
		k++
	}
	return k
}

func monthOccurrence(anchor time.Time, months int) time.Time {
	total := int(anchor.Month()) - 1 + months
	year := anchor.Year() + total/12
	month := time.Month(total%12 + 1)
	day := anchor.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

func yearOccurrence(anchor time.Time, years int) time.Time {
	year := anchor.Year() + years
	day := anchor.Day()
	// Feb 29 anchors clamp to Feb 28 in non-leap years.
	if last := daysIn(year, anchor.Month()); day > last {
		day = last
	}
	return time.Date(year, anchor.Month(), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
