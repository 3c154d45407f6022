package agent

import (
	"math/rand"
	"time"
)

// NewRand returns a random source for a party. A zero seed draws one from
// the wall clock; any other seed gives reproducible behavior.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// pick returns a uniformly random element of s. s must be non-empty.
func pick[T any](rng *rand.Rand, s []T) T {
	return s[rng.Intn(len(s))]
}
