package linking

import "sync/atomic"

const (
	gateOpen int32 = iota
	gateConsumed
	gateClosed
)

// Gate lets exactly one callback delivery through per session.
// Once consumed or closed it rejects every later delivery.
type Gate struct {
	state atomic.Int32
}

// TryAccept returns true for the first caller only
func (g *Gate) TryAccept() bool {
	return g.state.CompareAndSwap(gateOpen, gateConsumed)
}

// Close rejects all future deliveries without marking the gate consumed
func (g *Gate) Close() {
	g.state.CompareAndSwap(gateOpen, gateClosed)
}

// Consumed reports whether a delivery was accepted
func (g *Gate) Consumed() bool {
	return g.state.Load() == gateConsumed
}

// Open reports whether a delivery may still be accepted
func (g *Gate) Open() bool {
	return g.state.Load() == gateOpen
}
