package clock

import (
	"sort"
	"sync"
	"time"
)

// Simulated allows time manipulation for testing. Callbacks fire synchronously, in due
// order, on the goroutine that calls Advance.
type Simulated struct {
	mu      sync.Mutex
	current time.Time
	nextID  int
	entries map[int]*simEntry
}

type simEntry struct {
	id       int
	due      time.Time
	interval time.Duration
	fn       func()
}

// NewSimulated creates a new Simulated clock starting at the given time
func NewSimulated(start time.Time) *Simulated {
	return &Simulated{
		current: start,
		entries: make(map[int]*simEntry),
	}
}

// NewSimulatedNow creates a new Simulated clock starting at the current time
func NewSimulatedNow() *Simulated {
	return NewSimulated(time.Now())
}

// Now returns the simulated current time
func (c *Simulated) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to fire once the clock has advanced by d
func (c *Simulated) AfterFunc(d time.Duration, f func()) Timer {
	return c.schedule(d, 0, f)
}

// Every registers f to fire each time the clock crosses a multiple of d
func (c *Simulated) Every(d time.Duration, f func()) Timer {
	return c.schedule(d, d, f)
}

func (c *Simulated) schedule(d, interval time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	e := &simEntry{id: c.nextID, due: c.current.Add(d), interval: interval, fn: f}
	c.entries[e.id] = e
	return &simTimer{clock: c, id: e.id}
}

// Advance moves the simulated time forward by d, firing every callback that becomes due
func (c *Simulated) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		e := c.nextDue(target)
		if e == nil {
			c.current = target
			c.mu.Unlock()
			return
		}
		c.current = e.due
		if e.interval > 0 {
			e.due = e.due.Add(e.interval)
		} else {
			delete(c.entries, e.id)
		}
		fn := e.fn
		c.mu.Unlock()

		fn()
	}
}

// Pending returns the number of active timers and tickers
func (c *Simulated) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// nextDue returns the earliest entry due at or before target. Caller must hold the mutex.
func (c *Simulated) nextDue(target time.Time) *simEntry {
	due := make([]*simEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.due.After(target) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

type simTimer struct {
	clock *Simulated
	id    int
}

func (t *simTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.entries[t.id]; !ok {
		return false
	}
	delete(t.clock.entries, t.id)
	return true
}
