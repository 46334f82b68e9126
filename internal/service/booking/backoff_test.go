package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_ExponentialWithJitter(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 2 * time.Second}

	for attempt := 1; attempt <= 4; attempt++ {
		lo := time.Duration(float64(b.Base) * float64(int(1)<<(attempt-1)))
		hi := time.Duration(float64(lo) * 1.1)

		for i := 0; i < 50; i++ {
			d := b.Delay(attempt)
			assert.GreaterOrEqual(t, d, lo, "attempt %d", attempt)
			assert.LessOrEqual(t, d, hi, "attempt %d", attempt)
		}
	}
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 2 * time.Second}

	// 100ms * 2^5 = 3.2s, well past the cap.
	for i := 0; i < 20; i++ {
		assert.Equal(t, b.Max, b.Delay(6))
	}

	// even attempt 5 (1.6s) can cross the cap only through jitter
	for i := 0; i < 50; i++ {
		assert.LessOrEqual(t, b.Delay(5), b.Max)
	}
}

func TestBackoffDelay_AttemptFloor(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: 2 * time.Second}

	for _, attempt := range []int{-1, 0, 1} {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, b.Base)
		assert.LessOrEqual(t, d, time.Duration(float64(b.Base)*1.1))
	}
}
