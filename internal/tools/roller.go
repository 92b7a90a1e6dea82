package tools

import (
	"math/rand/v2"
	"sync"
)

// Roller is the randomness source for dice and generated content.
type Roller interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type globalRoller struct{}

func (globalRoller) IntN(n int) int { return rand.IntN(n) }

// DefaultRoller draws from the process-wide generator.
func DefaultRoller() Roller { return globalRoller{} }

// SeededRoller is a deterministic Roller for tests and replays.
type SeededRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededRoller returns a Roller whose sequence depends only on seed.
func NewSeededRoller(seed uint64) *SeededRoller {
	return &SeededRoller{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *SeededRoller) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// FixedRoller returns its values in order and then repeats the last one.
// IntN clamps each value into [0, n).
type FixedRoller struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewFixedRoller returns a roller producing values in order.
func NewFixedRoller(values ...int) *FixedRoller {
	return &FixedRoller{values: values}
}

func (r *FixedRoller) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[min(r.next, len(r.values)-1)]
	r.next++
	return max(0, min(v, n-1))
}
