package physics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Runner drives a world at the configured wall-clock pace. The loop is
// an owned handle, not a fire-and-forget timer: Stop cancels the pending
// tick, waits for the loop to exit, and then syncs positions back to the
// tree exactly once, so stopping is deterministic. Cancelling the
// surrounding context halts the loop without a sync-back, abandoning the
// simulated positions.
type Runner struct {
	world   *World
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	started atomic.Bool
	closed  sync.Once
	synced  sync.Once
}

// NewRunner creates a runner for the world.
func NewRunner(world *World) *Runner {
	return NewRunnerWithContext(context.Background(), world)
}

// NewRunnerWithContext creates a runner whose loop also halts when the
// context is cancelled.
func NewRunnerWithContext(ctx context.Context, world *World) *Runner {
	runCtx, cancel := context.WithCancel(ctx)
	return &Runner{
		world:   world,
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins stepping the world in the background. Further calls are
// no-ops; a stopped runner cannot be restarted.
func (r *Runner) Start() {
	if r.started.Swap(true) {
		return
	}
	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(r.world.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				r.world.Step()
			}
		}
	}()
}

// Stop halts the loop, waits for the in-flight step to finish, and syncs
// the simulated positions back to the tree. Only the first Stop writes
// the tree; repeat calls, sequential or concurrent, return after the
// loop is down.
func (r *Runner) Stop() {
	if !r.started.Load() {
		r.cancel()
		return
	}
	r.cancel()
	r.closed.Do(func() { close(r.done) })
	<-r.stopped
	r.synced.Do(r.world.SyncBack)
}

// Running reports whether the loop is currently stepping.
func (r *Runner) Running() bool {
	if !r.started.Load() {
		return false
	}
	select {
	case <-r.stopped:
		return false
	default:
		return true
	}
}
