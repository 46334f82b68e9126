package booking

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the pause before retry number attempt:
// min(Max, Base * 2^(attempt-1) * (1 + jitter)), jitter uniform in [0, 0.1).
// Exponential growth spreads out colliding writers; the jitter keeps two
// requests that conflicted once from conflicting again in lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.Base) * math.Pow(2, float64(attempt-1))
	d *= 1 + rand.Float64()*0.1

	if dd := time.Duration(d); dd < b.Max {
		return dd
	}

	return b.Max
}
