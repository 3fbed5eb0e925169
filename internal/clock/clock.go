package clock

import (
	"sync"
	"time"
)

// Clock provides an abstraction for time operations
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// AfterFunc calls f once after d has elapsed
	AfterFunc(d time.Duration, f func()) Timer
	// Every calls f every d until the returned Timer is stopped
	Every(d time.Duration, f func()) Timer
}

// Timer is a handle on a scheduled callback
type Timer interface {
	// Stop prevents any further calls. It reports whether the timer was still active.
	Stop() bool
}

// Real uses the actual system time
type Real struct{}

// NewReal creates a new Real clock
func NewReal() *Real {
	return &Real{}
}

// Now returns the current system time
func (c *Real) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on its own goroutine after d
func (c *Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Every runs f on a ticker goroutine. Stop does not wait for an in-flight call to return,
// so f may stop its own ticker.
func (c *Real) Every(d time.Duration, f func()) Timer {
	t := &realTicker{
		ticker: time.NewTicker(d),
		quit:   make(chan struct{}),
	}
	go t.run(f)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	quit   chan struct{}
	once   sync.Once
}

func (t *realTicker) run(f func()) {
	defer t.ticker.Stop()
	for {
		select {
		case <-t.ticker.C:
			select {
			case <-t.quit:
				return
			default:
			}
			f()
		case <-t.quit:
			return
		}
	}
}

func (t *realTicker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		close(t.quit)
		stopped = true
	})
	return stopped
}
