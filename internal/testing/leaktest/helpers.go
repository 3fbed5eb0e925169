package leaktest

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ModulePrefix matches any frame from this module's packages
const ModulePrefix = "github.com/osse101/adlink/internal/"

// ClockTickerFrame is the frame of a running clock.Real ticker goroutine
const ClockTickerFrame = "github.com/osse101/adlink/internal/clock.(*realTicker).run"

// DefaultWait is how long Check waits for goroutines to wind down
const DefaultWait = time.Second

const pollInterval = 10 * time.Millisecond

// Goroutine is one entry of a runtime stack dump
type Goroutine struct {
	ID    int64
	State string
	Stack string
}

// Option configures a GoroutineChecker
type Option func(*GoroutineChecker)

// Tracking limits the checker to goroutines whose stack contains frame.
// The default is ModulePrefix.
func Tracking(frame string) Option {
	return func(g *GoroutineChecker) { g.track = frame }
}

// Ignoring excludes goroutines whose stack contains frame
func Ignoring(frame string) Option {
	return func(g *GoroutineChecker) { g.ignore = append(g.ignore, frame) }
}

// WithWait sets how long Check waits before reporting a leak
func WithWait(d time.Duration) Option {
	return func(g *GoroutineChecker) { g.wait = d }
}

// GoroutineChecker reports goroutines started after it was created that are still running
type GoroutineChecker struct {
	t      testing.TB
	before map[int64]bool
	track  string
	ignore []string
	wait   time.Duration
}

// NewGoroutineChecker records the tracked goroutines running now
func NewGoroutineChecker(t testing.TB, opts ...Option) *GoroutineChecker {
	t.Helper()

	g := &GoroutineChecker{t: t, track: ModulePrefix, wait: DefaultWait}
	for _, opt := range opts {
		opt(g)
	}

	g.before = make(map[int64]bool)
	for _, gr := range g.tracked() {
		g.before[gr.ID] = true
	}
	return g
}

// Leaked returns tracked goroutines that did not exist when the checker was created
func (g *GoroutineChecker) Leaked() []Goroutine {
	var leaked []Goroutine
	for _, gr := range g.tracked() {
		if !g.before[gr.ID] {
			leaked = append(leaked, gr)
		}
	}
	return leaked
}

// Check fails the test if more than tolerance new goroutines are still running once the wait expires
func (g *GoroutineChecker) Check(tolerance int) {
	g.t.Helper()

	leaked := g.Leaked()
	deadline := time.Now().Add(g.wait)
	for len(leaked) > tolerance && time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		leaked = g.Leaked()
	}

	if len(leaked) > tolerance {
		var b strings.Builder
		for _, gr := range leaked {
			fmt.Fprintf(&b, "\ngoroutine %d [%s]:\n%s\n", gr.ID, gr.State, gr.Stack)
		}
		g.t.Errorf("Potential goroutine leak: leaked=%d (tolerance=%d)%s", len(leaked), tolerance, b.String())
	}
}

func (g *GoroutineChecker) tracked() []Goroutine {
	var out []Goroutine
	for _, gr := range Snapshot()[1:] {
		if g.track != "" && !strings.Contains(gr.Stack, g.track) {
			continue
		}
		if g.ignored(gr) {
			continue
		}
		out = append(out, gr)
	}
	return out
}

func (g *GoroutineChecker) ignored(gr Goroutine) bool {
	for _, frame := range g.ignore {
		if strings.Contains(gr.Stack, frame) {
			return true
		}
	}
	return false
}

// CheckNoGoroutineLeak runs fn and fails if it leaves any module goroutine behind
func CheckNoGoroutineLeak(t *testing.T, fn func(), opts ...Option) {
	t.Helper()

	checker := NewGoroutineChecker(t, opts...)
	fn()
	checker.Check(0)
}

// RequireNoTickers fails the test if a clock.Real ticker goroutine is still running after the wait.
// Session teardown must stop every ticker it started.
func RequireNoTickers(t testing.TB, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for {
		n := Count(ClockTickerFrame)
		if n == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d clock ticker goroutine(s) still running", n)
			return
		}
		time.Sleep(pollInterval)
	}
}

// Count returns the number of goroutines, other than the caller, whose stack contains frame
func Count(frame string) int {
	n := 0
	for _, gr := range Snapshot()[1:] {
		if strings.Contains(gr.Stack, frame) {
			n++
		}
	}
	return n
}

// Snapshot parses a full stack dump. The calling goroutine comes first.
func Snapshot() []Goroutine {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
	}

	var out []Goroutine
	for _, block := range bytes.Split(buf, []byte("\n\n")) {
		if gr, ok := parseGoroutine(string(block)); ok {
			out = append(out, gr)
		}
	}
	return out
}

// parseGoroutine reads a block starting with "goroutine 12 [chan receive]:"
func parseGoroutine(block string) (Goroutine, bool) {
	header, stack, _ := strings.Cut(strings.TrimSpace(block), "\n")
	rest, ok := strings.CutPrefix(header, "goroutine ")
	if !ok {
		return Goroutine{}, false
	}
	idText, state, ok := strings.Cut(rest, " ")
	if !ok {
		return Goroutine{}, false
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return Goroutine{}, false
	}
	state = strings.TrimSuffix(strings.TrimPrefix(state, "["), "]:")
	return Goroutine{ID: id, State: state, Stack: stack}, true
}
