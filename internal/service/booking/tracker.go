package booking

import (
	"sync"

	"github.com/google/uuid"
)

// InFlightTracker counts reservation requests currently racing for each
// slot. Purely telemetry: the numbers enrich log records and never feed
// the booking decision. Entries are dropped at zero so the map only
// holds actively contended slots.
type InFlightTracker struct {
	mu      sync.Mutex
	perSlot map[uuid.UUID]int
}

func NewInFlightTracker() *InFlightTracker {
	return &InFlightTracker{perSlot: make(map[uuid.UUID]int)}
}

// Enter registers a request against the slot and returns the in-flight
// count including this one.
func (t *InFlightTracker) Enter(slotID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.perSlot[slotID]++
	return t.perSlot[slotID]
}

func (t *InFlightTracker) Exit(slotID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.perSlot[slotID]
	if n <= 1 {
		delete(t.perSlot, slotID)
		return
	}

	t.perSlot[slotID] = n - 1
}

func (t *InFlightTracker) InFlight(slotID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.perSlot[slotID]
}
