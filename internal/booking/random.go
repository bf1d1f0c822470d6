package booking

import (
	"math/rand/v2"
	"sync"
)

// Random is the source of randomness shared by the allocator shuffle, the
// customer delays and the reserve/release decision.  Implementations
// must be safe for concurrent use.
type Random interface {
	IntN(n int) int
	Int64N(n int64) int64
	Float64() float64
}

// NewRandom returns a goroutine-safe PCG source.  The same seed always
// yields the same sequence, which keeps tests reproducible.
func NewRandom(seed uint64) Random {
	return &lockedRandom{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// newRandomSeeded seeds a source from the global generator.
func newRandomSeeded() Random { return NewRandom(rand.Uint64()) }

type lockedRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRandom) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRandom) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

func (l *lockedRandom) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}
