package booking

import (
	"context"
	"sync"
)

// Gate is a two-state broadcast barrier.  While open, Wait returns at
// once; while closed, every caller blocks until Open is called or its
// context ends.  Gate is independent of the inventory lock, so a worker
// parked at the gate holds no lock.
type Gate struct {
	mu     sync.Mutex
	open   bool
	opened chan struct{} // closed by Open; nil while the gate is open
}

// NewGate returns an open gate.
func NewGate() *Gate { return &Gate{open: true} }

// Wait blocks while the gate is closed.
func (g *Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	if g.open {
		g.mu.Unlock()
		return nil
	}
	ch := g.opened
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close makes subsequent Wait calls block.  It reports whether the gate
// was open.
func (g *Gate) Close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return false
	}
	g.open = false
	g.opened = make(chan struct{})
	return true
}

// Open releases every blocked waiter.  It reports whether the gate was
// closed.
func (g *Gate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return false
	}
	g.open = true
	close(g.opened)
	g.opened = nil
	return true
}

// IsOpen reports the current state.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}
