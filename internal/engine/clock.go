package engine

import (
	"time"
)

// Clock abstracts wall-clock time so idle expiry is testable without sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
