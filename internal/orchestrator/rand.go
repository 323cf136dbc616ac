package orchestrator

import (
	"math/rand"
	"sync"
	"time"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	rngMu.Lock()
	v := rng.Int63n(n)
	rngMu.Unlock()
	return v
}

// applyJitter nudges d by a uniformly random amount in [-jitter, +jitter],
// used by the ping loop to avoid thundering-herd pings across many
// brokers (§4.6 "ping loop").
func applyJitter(d, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return d
	}
	j := time.Duration(randInt63n(int64(2*jitter)+1) - int64(jitter))
	if d+j < 0 {
		return d
	}
	return d + j
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
