package utils

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandSource is a thread-safe random number generator
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// UniformFloat64 returns a uniformly distributed random number in [min, max]
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	if min == max {
		return min
	}
	// interpolate without forming max-min, which overflows for spans wider than MaxFloat64
	u := r.Float64()
	v := min*(1-u) + max*u
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// UniformInt64 returns a uniformly distributed integer in [min, max].
// Callers must ensure min <= max.
func (r *RandSource) UniformInt64(min, max int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	// two's complement subtraction gives the span even when max-min overflows int64
	span := uint64(max) - uint64(min)
	switch {
	case span == 0:
		return min
	case span < math.MaxInt64:
		return min + r.rng.Int63n(int64(span)+1)
	case span == math.MaxUint64:
		return int64(r.rng.Uint64())
	}
	for {
		if v := r.rng.Uint64(); v <= span {
			return int64(uint64(min) + v)
		}
	}
}
