package layout

import "sync/atomic"

// PanGuard keeps pan-to-node animations from overlapping: a pan that
// cannot claim the slot is rejected rather than queued, so a second
// request during an animation is a no-op. The zero value is ready to
// use.
type PanGuard struct {
	inFlight atomic.Bool
}

// TryStart claims the pan slot, reporting whether the caller may
// proceed. A caller that got true must call [PanGuard.Done] when the
// animation finishes or is cancelled.
func (g *PanGuard) TryStart() bool { return g.inFlight.CompareAndSwap(false, true) }

// Done releases the pan slot.
func (g *PanGuard) Done() { g.inFlight.Store(false) }

// Active reports whether a pan is currently in flight.
func (g *PanGuard) Active() bool { return g.inFlight.Load() }
