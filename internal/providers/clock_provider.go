package providers

import "time"

// Clock is the time source for rate windows and record timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewClock() Clock {
	return systemClock{}
}
