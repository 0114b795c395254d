package utils

import (
	"math/rand"
	"sync"
	"time"
)

var (
	rng     *rand.Rand
	rngOnce sync.Once
)

// GetRand returns a thread-safe random number generator, shared across the
// process so concurrent callers (e.g. per-client jittered backoff) don't
// each pay for their own seed.
func GetRand() *rand.Rand {
	rngOnce.Do(func() {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	})
	return rng
}
