package booking

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInFlightTracker_EnterCountsSelf(t *testing.T) {
	tr := NewInFlightTracker()
	slot := uuid.New()

	assert.Equal(t, 1, tr.Enter(slot))
	assert.Equal(t, 2, tr.Enter(slot))
	assert.Equal(t, 2, tr.InFlight(slot))

	other := uuid.New()
	assert.Equal(t, 1, tr.Enter(other))
}

func TestInFlightTracker_DropsEntryAtZero(t *testing.T) {
	tr := NewInFlightTracker()
	slot := uuid.New()

	tr.Enter(slot)
	tr.Enter(slot)
	tr.Exit(slot)
	assert.Equal(t, 1, tr.InFlight(slot))

	tr.Exit(slot)
	assert.Equal(t, 0, tr.InFlight(slot))
	assert.Empty(t, tr.perSlot)
}

func TestInFlightTracker_Concurrent(t *testing.T) {
	tr := NewInFlightTracker()
	slot := uuid.New()

	const n = 64

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			got := tr.Enter(slot)
			assert.GreaterOrEqual(t, got, 1)
			assert.LessOrEqual(t, got, n)
			tr.Exit(slot)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, tr.InFlight(slot))
	assert.Empty(t, tr.perSlot)
}
