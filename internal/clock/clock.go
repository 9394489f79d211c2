package clock

import "time"

// Clock abstracts time so order numbers, analytics windows and trace stamps are testable.
type Clock interface {
	Now() time.Time
}

type System struct{}

func NewSystem() System {
	return System{}
}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}
