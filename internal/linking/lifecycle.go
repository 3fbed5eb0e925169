package linking

import (
	"sync"
	"time"

	"github.com/osse101/adlink/internal/clock"
)

// Lifecycle collects the release functions of everything a session or
// listener owns and runs them exactly once on Dispose.
type Lifecycle struct {
	mu       sync.Mutex
	releases []func()
	disposed bool
}

// Own registers release to run on Dispose. After Dispose it runs immediately.
func (l *Lifecycle) Own(release func()) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		release()
		return
	}
	l.releases = append(l.releases, release)
	l.mu.Unlock()
}

// AfterFunc schedules f on c and owns the resulting timer
func (l *Lifecycle) AfterFunc(c clock.Clock, d time.Duration, f func()) clock.Timer {
	t := c.AfterFunc(d, f)
	l.Own(func() { t.Stop() })
	return t
}

// Every schedules f every d on c and owns the resulting ticker
func (l *Lifecycle) Every(c clock.Clock, d time.Duration, f func()) clock.Timer {
	t := c.Every(d, f)
	l.Own(func() { t.Stop() })
	return t
}

// Dispose runs all releases in reverse registration order. Only the first
// call does anything; it reports whether this call performed the teardown.
func (l *Lifecycle) Dispose() bool {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return false
	}
	l.disposed = true
	releases := l.releases
	l.releases = nil
	l.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
	return true
}

// Disposed reports whether Dispose has been called
func (l *Lifecycle) Disposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

// Pending returns the number of registered releases not yet run
func (l *Lifecycle) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.releases)
}
