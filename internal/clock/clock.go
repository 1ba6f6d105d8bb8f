package clock

import "time"

// Clock supplies the current instant. The engine never reads the wall clock
// directly so scheduling passes can be driven with fixed times in tests.
type Clock interface {
	Now() time.Time
}

// UTC is the production clock. All instants in the system are UTC.
type UTC struct{}

func (UTC) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time {
	return f.Instant
}
