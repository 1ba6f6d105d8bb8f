package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// RRuleString renders a schedule in RFC 5545 form (DTSTART plus an RRULE
// like "FREQ=MONTHLY;INTERVAL=2"). Rendering only: the series math in
// this package clamps month-end anchors, while RFC MONTHLY semantics skip
// months without the anchor day, so the library is never asked to compute
// occurrences.
func RRuleString(anchor time.Time, freq Frequency, interval int, until *time.Time) (string, error) {
	opt := rrule.ROption{
		Freq:     rruleFreq(freq),
		Interval: interval,
		Dtstart:  anchor.UTC(),
	}
	if until != nil {
		opt.Until = until.UTC()
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return r.String(), nil
}

func rruleFreq(freq Frequency) rrule.Frequency {
	switch freq {
	case Daily:
		return rrule.DAILY
	case Weekly:
		return rrule.WEEKLY
	case Monthly:
		return rrule.MONTHLY
	case Yearly:
		return rrule.YEARLY
	}
	return rrule.DAILY
}

// Describe returns a short human-readable schedule, e.g. "monthly",
// "every 2 weeks", "daily until 2025-06-30".
func Describe(freq Frequency, interval int, until *time.Time) string {
	var s string
	if interval <= 1 {
		switch freq {
		case Daily:
			s = "daily"
		case Weekly:
			s = "weekly"
		case Monthly:
			s = "monthly"
		case Yearly:
			s = "yearly"
		}
	} else {
		var unit string
		switch freq {
		case Daily:
			unit = "days"
		case Weekly:
			unit = "weeks"
		case Monthly:
			unit = "months"
		case Yearly:
			unit = "years"
		}
		s = fmt.Sprintf("every %d %s", interval, unit)
	}
	if until != nil {
		s += " until " + until.UTC().Format("2006-01-02")
	}
	return s
}
