package booking

import "sync"

// Allocator hands out seat indices so that every seat is offered once,
// in a uniformly random order, before any seat is offered again.  Once
// the order is used up it falls back to the first Available seat.
//
// The allocator's mutex and the inventory's are never held together:
// the cursor is advanced under the allocator lock, the fallback scan
// runs under the inventory lock only.
type Allocator struct {
	inv   *Inventory
	hooks *Hooks

	mu        sync.Mutex
	order     []int
	cursor    int
	fallbacks int
}

// NewAllocator shuffles 0..inv.Len()-1 with a Fisher-Yates pass over rng.
func NewAllocator(inv *Inventory, rng Random) *Allocator {
	order := make([]int, inv.Len())
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return &Allocator{inv: inv, order: order}
}

// Next returns the next candidate index.  The candidate is a hint: the
// caller must re-check it under the inventory lock (see Inventory.Claim).
// NoSeat means nothing was Available at the time of the fallback scan.
func (a *Allocator) Next() int {
	a.mu.Lock()
	if a.cursor < len(a.order) {
		idx := a.order[a.cursor]
		a.cursor++
		a.mu.Unlock()
		return idx
	}
	a.fallbacks++
	a.mu.Unlock()
	a.hooks.allocatorFallback()
	return a.inv.FirstAvailable()
}

// Fallbacks returns how many calls to Next went to the first-available
// scan because the shuffled order was used up.
func (a *Allocator) Fallbacks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fallbacks
}

// Remaining returns how many indices of the shuffled order are unused.
func (a *Allocator) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order) - a.cursor
}
