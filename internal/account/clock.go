package account

import "time"

// clock abstracts timer creation so tests can script deadlines instead of
// sleeping through them.
type clock interface {
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) timer
}

// timer is the slice of time.Timer the poll loop needs.
type timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (realClock) NewTimer(d time.Duration) timer {
	return realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) C() <-chan time.Time        { return rt.t.C }
func (rt realTimer) Stop() bool                 { return rt.t.Stop() }
func (rt realTimer) Reset(d time.Duration) bool { return rt.t.Reset(d) }
